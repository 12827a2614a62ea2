package config

import "strings"

// envReplacer maps nested keys to variable names: cache.ttl reads
// TASKQL_CACHE_TTL.
var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// flagKey maps a flag name to its config key. Flags for nested keys use
// a dot-free spelling: --cache-ttl sets cache.ttl, --log-file log.file.
func flagKey(name string) string {
	key := strings.ReplaceAll(name, "-", "_")
	for _, section := range []string{"cache_", "log_"} {
		if strings.HasPrefix(key, section) {
			return strings.TrimSuffix(section, "_") + "." + strings.TrimPrefix(key, section)
		}
	}
	return key
}
