package globalfilter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/steveyegge/taskql/internal/task"
)

const tomlProfiles = `
active = "daily"

[profiles.daily]
include_paths = ["daily/"]
exclude_paths = ["daily/archive/**"]
exclude_status_types = ["DONE", "cancelled"]

[profiles.work]
include_tags = ["#work"]
exclude_regex = "(?i)someday"
regex_targets = ["taskText", "path"]
`

const yamlProfiles = `
active: daily
profiles:
  daily:
    include_paths: ["daily/"]
    exclude_paths: ["daily/archive/**"]
    exclude_status_types: [DONE, cancelled]
  work:
    include_tags: ["#work"]
    exclude_regex: "(?i)someday"
    regex_targets: [taskText, path]
`

const jsonProfiles = `{
  // daily notes only
  "active": "daily",
  "profiles": {
    "daily": {
      "include_paths": ["daily/"],
      "exclude_paths": ["daily/archive/**"],
      "exclude_status_types": ["DONE", "cancelled"],
    },
    "work": {
      "include_tags": ["#work"],
      "exclude_regex": "(?i)someday",
      "regex_targets": ["taskText", "path"], /* trailing comma */
    },
  },
}`

func wantProfiles() *ProfileSet {
	return &ProfileSet{
		Active: "daily",
		Profiles: map[string]*Profile{
			"daily": {
				Name:               "daily",
				IncludePaths:       []string{"daily/"},
				ExcludePaths:       []string{"daily/archive/**"},
				ExcludeStatusTypes: []task.StatusType{task.StatusDone, "cancelled"},
			},
			"work": {
				Name:         "work",
				IncludeTags:  []string{"#work"},
				ExcludeRegex: "(?i)someday",
				RegexTargets: []RegexTarget{TargetTaskText, TargetPath},
			},
		},
	}
}

func TestLoadProfileSet(t *testing.T) {
	tests := []struct {
		file    string
		content string
	}{
		{"profiles.toml", tomlProfiles},
		{"profiles.yaml", yamlProfiles},
		{"profiles.yml", yamlProfiles},
		{"profiles.json", jsonProfiles},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			got, err := LoadProfileSet(path)
			if err != nil {
				t.Fatalf("LoadProfileSet() error = %v", err)
			}
			if diff := cmp.Diff(wantProfiles(), got); diff != "" {
				t.Errorf("LoadProfileSet() mismatch (-want +got):\n%s", diff)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestLoadProfileSetErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadProfileSet(filepath.Join(dir, "nope.toml")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "profiles.ini")
		if err := os.WriteFile(path, []byte("[daily]"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadProfileSet(path); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("error = %v, want ErrUnsupportedFormat", err)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(path, []byte(`{"profiles": `), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadProfileSet(path); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}

func TestActiveProfile(t *testing.T) {
	tests := []struct {
		name     string
		set      ProfileSet
		wantName string
		wantErr  error
	}{
		{
			name:     "active name",
			set:      ProfileSet{Active: "b", Profiles: map[string]*Profile{"a": {Name: "a"}, "b": {Name: "b"}}},
			wantName: "b",
		},
		{
			name:     "falls back to default",
			set:      ProfileSet{Profiles: map[string]*Profile{"default": {Name: "default"}, "b": {Name: "b"}}},
			wantName: "default",
		},
		{
			name:     "single profile",
			set:      ProfileSet{Profiles: map[string]*Profile{"only": {Name: "only"}}},
			wantName: "only",
		},
		{
			name:    "ambiguous",
			set:     ProfileSet{Profiles: map[string]*Profile{"a": {Name: "a"}, "b": {Name: "b"}}},
			wantErr: ErrUnknownProfile,
		},
		{
			name:    "unknown active",
			set:     ProfileSet{Active: "c", Profiles: map[string]*Profile{"a": {Name: "a"}}},
			wantErr: ErrUnknownProfile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.set.ActiveProfile()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ActiveProfile() error = %v", err)
			}
			if got.Name != tt.wantName {
				t.Errorf("ActiveProfile().Name = %q, want %q", got.Name, tt.wantName)
			}
		})
	}
}

func TestProfileValidate(t *testing.T) {
	p := Profile{
		Name:               "broken",
		IncludeTags:        []string{"#"},
		ExcludeRegex:       "(oops",
		RegexTargets:       []RegexTarget{"body"},
		ExcludeStatusTypes: []task.StatusType{"ARCHIVED"},
	}

	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"profile broken", "empty tag pattern", "invalid regex", `unknown regex target "body"`, `unknown status type "ARCHIVED"`} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}

	ok := Profile{IncludePaths: []string{"daily/"}, ExcludeTags: []string{"#x/*"}}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestProfileSetValidateUnknownActive(t *testing.T) {
	set := ProfileSet{Active: "missing", Profiles: map[string]*Profile{"a": {Name: "a"}}}
	if err := set.Validate(); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Validate() error = %v, want ErrUnknownProfile", err)
	}
}

func TestProfileIsEmpty(t *testing.T) {
	if p := (Profile{Name: "x", RegexTargets: []RegexTarget{TargetPath}}); !p.IsEmpty() {
		t.Error("profile with only a name and targets should be empty")
	}
	if p := (Profile{ExcludeTags: []string{"#a"}}); p.IsEmpty() {
		t.Error("profile with a tag rule should not be empty")
	}
}

func TestLoadedProfileDrivesEngine(t *testing.T) {
	set, err := ParseProfileSet([]byte(tomlProfiles), ".toml")
	if err != nil {
		t.Fatal(err)
	}
	p, err := set.ActiveProfile()
	if err != nil {
		t.Fatal(err)
	}

	e, _ := quietEngine(t, *p)
	tests := []struct {
		content, path string
		want          bool
	}{
		{"- [ ] call mom", "daily/2024-01-10.md", true},
		{"- [x] call mom", "daily/2024-01-10.md", false},
		{"- [ ] call mom", "daily/archive/2024-01-01.md", false},
		{"- [ ] call mom", "projects/home.md", false},
	}
	for _, tt := range tests {
		if got := e.Evaluate(tt.content, tt.path); got != tt.want {
			t.Errorf("Evaluate(%q, %q) = %v, want %v", tt.content, tt.path, got, tt.want)
		}
	}
}
