// Package settings manages persistent user settings for the nsxctl CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/newtron-network/nsxctl/pkg/util"
)

// Settings holds persistent user preferences. Every field supplies the
// default of the matching global flag.
type Settings struct {
	Manager          string `json:"manager,omitempty"`
	Port             int    `json:"port,omitempty"`
	User             string `json:"user,omitempty"`
	CookieFile       string `json:"cookie_file,omitempty"`
	Insecure         bool   `json:"insecure,omitempty"`
	Site             string `json:"site,omitempty"`
	EnforcementPoint string `json:"enforcement_point,omitempty"`
	Domain           string `json:"domain,omitempty"`
	Org              string `json:"org,omitempty"`
	Project          string `json:"project,omitempty"`
	Output           string `json:"output,omitempty"`

	// AuditLog overrides ~/.nsxctl/audit.log
	AuditLog        string `json:"audit_log,omitempty"`
	AuditMaxSizeMB  int    `json:"audit_max_size_mb,omitempty"`
	AuditMaxBackups int    `json:"audit_max_backups,omitempty"`
}

// Dir returns ~/.nsxctl, or the working directory when the home
// directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nsxctl"
	}
	return filepath.Join(home, ".nsxctl")
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	return filepath.Join(Dir(), "settings.json")
}

// DefaultAuditLogPath returns the default audit log location.
func DefaultAuditLogPath() string {
	return filepath.Join(Dir(), "audit.log")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path. The file may name a user and
// cookie file, so it is private to the owner.
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// AuditLogPath returns the audit log location (with fallback)
func (s *Settings) AuditLogPath() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return DefaultAuditLogPath()
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}

type field struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

func stringField(p func(*Settings) *string) field {
	return field{
		get: func(s *Settings) string { return *p(s) },
		set: func(s *Settings, v string) error { *p(s) = v; return nil },
	}
}

func intField(p func(*Settings) *int, min, max int) field {
	return field{
		get: func(s *Settings) string {
			if *p(s) == 0 {
				return ""
			}
			return strconv.Itoa(*p(s))
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < min || n > max {
				return fmt.Errorf("expected a number from %d to %d, got '%s'", min, max, v)
			}
			*p(s) = n
			return nil
		},
	}
}

var fields = map[string]field{
	"manager":           stringField(func(s *Settings) *string { return &s.Manager }),
	"port":              intField(func(s *Settings) *int { return &s.Port }, 0, 65535),
	"user":              stringField(func(s *Settings) *string { return &s.User }),
	"cookie_file":       stringField(func(s *Settings) *string { return &s.CookieFile }),
	"site":              stringField(func(s *Settings) *string { return &s.Site }),
	"enforcement_point": stringField(func(s *Settings) *string { return &s.EnforcementPoint }),
	"domain":            stringField(func(s *Settings) *string { return &s.Domain }),
	"org":               stringField(func(s *Settings) *string { return &s.Org }),
	"project":           stringField(func(s *Settings) *string { return &s.Project }),
	"output":            stringField(func(s *Settings) *string { return &s.Output }),
	"audit_log":         stringField(func(s *Settings) *string { return &s.AuditLog }),
	"audit_max_size_mb": intField(func(s *Settings) *int { return &s.AuditMaxSizeMB }, 0, 1<<20),
	"audit_max_backups": intField(func(s *Settings) *int { return &s.AuditMaxBackups }, 0, 1000),
	"insecure": {
		get: func(s *Settings) string {
			if !s.Insecure {
				return ""
			}
			return "true"
		},
		set: func(s *Settings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false, got '%s'", v)
			}
			s.Insecure = b
			return nil
		},
	},
}

// Keys returns the setting names accepted by Get and Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookup(key string) (field, error) {
	f, ok := fields[key]
	if !ok {
		return field{}, util.NewValidationError(fmt.Sprintf("unknown setting: %s (valid: %v)", key, Keys()))
	}
	return f, nil
}

// Get returns a setting by name; an unset setting is "".
func (s *Settings) Get(key string) (string, error) {
	f, err := lookup(key)
	if err != nil {
		return "", err
	}
	return f.get(s), nil
}

// Set parses and stores a setting by name.
func (s *Settings) Set(key, value string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	if err := f.set(s, value); err != nil {
		return util.NewValidationError(fmt.Sprintf("setting %s: %v", key, err))
	}
	return nil
}
