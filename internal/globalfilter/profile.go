package globalfilter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/taskql/internal/task"
)

var (
	// ErrUnknownProfile is returned when the active profile is not defined.
	ErrUnknownProfile = errors.New("unknown global filter profile")

	// ErrUnsupportedFormat is returned for profile files that are not
	// .toml, .yaml, .yml, or .json.
	ErrUnsupportedFormat = errors.New("unsupported profile file format")
)

// RegexTarget names a text field the include/exclude regex is tested on.
type RegexTarget string

const (
	TargetTaskText RegexTarget = "taskText"
	TargetPath     RegexTarget = "path"
	TargetFileName RegexTarget = "fileName"
)

func (t RegexTarget) valid() bool {
	switch t {
	case TargetTaskText, TargetPath, TargetFileName:
		return true
	}
	return false
}

// Profile is a declarative set of eligibility rules. Empty include lists
// allow everything.
type Profile struct {
	Name string `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`

	IncludePaths []string `json:"include_paths,omitempty" toml:"include_paths,omitempty" yaml:"include_paths,omitempty"`
	ExcludePaths []string `json:"exclude_paths,omitempty" toml:"exclude_paths,omitempty" yaml:"exclude_paths,omitempty"`

	IncludeTags []string `json:"include_tags,omitempty" toml:"include_tags,omitempty" yaml:"include_tags,omitempty"`
	ExcludeTags []string `json:"exclude_tags,omitempty" toml:"exclude_tags,omitempty" yaml:"exclude_tags,omitempty"`

	IncludeRegex string        `json:"include_regex,omitempty" toml:"include_regex,omitempty" yaml:"include_regex,omitempty"`
	ExcludeRegex string        `json:"exclude_regex,omitempty" toml:"exclude_regex,omitempty" yaml:"exclude_regex,omitempty"`
	RegexTargets []RegexTarget `json:"regex_targets,omitempty" toml:"regex_targets,omitempty" yaml:"regex_targets,omitempty"`

	ExcludeStatusTypes []task.StatusType `json:"exclude_status_types,omitempty" toml:"exclude_status_types,omitempty" yaml:"exclude_status_types,omitempty"`
}

// IsEmpty reports whether the profile has no rules at all.
func (p *Profile) IsEmpty() bool {
	return len(p.IncludePaths) == 0 && len(p.ExcludePaths) == 0 &&
		len(p.IncludeTags) == 0 && len(p.ExcludeTags) == 0 &&
		p.IncludeRegex == "" && p.ExcludeRegex == "" &&
		len(p.ExcludeStatusTypes) == 0
}

// Validate reports every problem in the profile. An engine built from an
// invalid profile still works; the offending rules never match.
func (p *Profile) Validate() error {
	var errs []error

	for _, pattern := range append(append([]string{}, p.IncludePaths...), p.ExcludePaths...) {
		if _, err := glob.Compile(globPattern(pattern), '/'); err != nil {
			errs = append(errs, fmt.Errorf("invalid path glob %q: %w", pattern, err))
		}
	}
	for _, tag := range append(append([]string{}, p.IncludeTags...), p.ExcludeTags...) {
		if normalizeTag(tag) == "" {
			errs = append(errs, fmt.Errorf("empty tag pattern %q", tag))
		}
	}
	for _, expr := range []string{p.IncludeRegex, p.ExcludeRegex} {
		if expr == "" {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("invalid regex %q: %w", expr, err))
		}
	}
	for _, target := range p.RegexTargets {
		if !target.valid() {
			errs = append(errs, fmt.Errorf("unknown regex target %q (expected taskText, path, or fileName)", target))
		}
	}
	for _, st := range p.ExcludeStatusTypes {
		if _, err := task.ParseStatusType(string(st)); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	if p.Name != "" {
		return fmt.Errorf("profile %s: %w", p.Name, errors.Join(errs...))
	}
	return errors.Join(errs...)
}

// ProfileSet is the content of a profile file: named profiles and the
// name of the one in effect.
type ProfileSet struct {
	Active   string              `json:"active,omitempty" toml:"active,omitempty" yaml:"active,omitempty"`
	Profiles map[string]*Profile `json:"profiles" toml:"profiles" yaml:"profiles"`
}

// Names returns the profile names in sorted order.
func (s *ProfileSet) Names() []string {
	names := make([]string, 0, len(s.Profiles))
	for name := range s.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveProfile returns the profile named by Active. Without an Active
// name it falls back to a profile called "default", then to the only
// profile when there is exactly one.
func (s *ProfileSet) ActiveProfile() (*Profile, error) {
	return s.Profile(s.Active)
}

// Profile returns the named profile, with the same fallbacks as
// ActiveProfile for an empty name.
func (s *ProfileSet) Profile(name string) (*Profile, error) {
	if name == "" {
		if p, ok := s.Profiles["default"]; ok {
			return p, nil
		}
		if len(s.Profiles) == 1 {
			for _, p := range s.Profiles {
				return p, nil
			}
		}
		return nil, fmt.Errorf("%w: no active profile among %s", ErrUnknownProfile, strings.Join(s.Names(), ", "))
	}

	p, ok := s.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// Validate validates every profile and checks that the active one exists.
func (s *ProfileSet) Validate() error {
	var errs []error
	for _, name := range s.Names() {
		if err := s.Profiles[name].Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Active != "" {
		if _, ok := s.Profiles[s.Active]; !ok {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownProfile, s.Active))
		}
	}
	return errors.Join(errs...)
}

// LoadProfileSet reads a profile file. The format follows the extension:
// .toml, .yaml/.yml, or .json (comments and trailing commas allowed).
// Profile names are taken from their keys.
func LoadProfileSet(path string) (*ProfileSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %s: %w", path, err)
	}

	set, err := ParseProfileSet(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}
	return set, nil
}

// ParseProfileSet decodes profile file content in the format named by ext.
func ParseProfileSet(data []byte, ext string) (*ProfileSet, error) {
	var set ProfileSet

	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &set); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, err
		}
	case ".json":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if err := json.Unmarshal(standardized, &set); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if set.Profiles == nil {
		set.Profiles = make(map[string]*Profile)
	}
	for name, p := range set.Profiles {
		if p == nil {
			p = &Profile{}
			set.Profiles[name] = p
		}
		p.Name = name
	}
	return &set, nil
}

// globPattern expands the "dir/" shorthand to "dir/**".
func globPattern(pattern string) string {
	pattern = strings.TrimPrefix(strings.ReplaceAll(pattern, "\\", "/"), "./")
	if strings.HasSuffix(pattern, "/") {
		return pattern + "**"
	}
	return pattern
}

// normalizeTag lowercases a tag and strips its leading "#".
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
}
