package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/newtron-network/nsxctl/pkg/util"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.AuditLogPath(); got != DefaultAuditLogPath() {
		t.Errorf("AuditLogPath() default = %q, want %q", got, DefaultAuditLogPath())
	}
	if !strings.HasSuffix(DefaultSettingsPath(), filepath.Join(".nsxctl", "settings.json")) {
		t.Errorf("DefaultSettingsPath() = %q", DefaultSettingsPath())
	}

	s.AuditLog = "/var/log/nsxctl.log"
	if got := s.AuditLogPath(); got != "/var/log/nsxctl.log" {
		t.Errorf("AuditLogPath() override = %q", got)
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{
		Manager:  "nsx.example.com",
		User:     "admin",
		Insecure: true,
		Port:     8443,
	}

	s.Clear()

	if *s != (Settings{}) {
		t.Errorf("Clear() should reset all fields, got %+v", s)
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	original := &Settings{
		Manager:          "nsx.example.com",
		Port:             8443,
		User:             "admin",
		Insecure:         true,
		Domain:           "prod",
		EnforcementPoint: "ep1",
		AuditMaxBackups:  3,
	}

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("settings file mode = %o, want 600", perm)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, original)
	}
}

func TestSettings_LoadNonExistent(t *testing.T) {
	s, err := LoadFrom("/nonexistent/path/settings.json")
	if err != nil {
		t.Fatalf("LoadFrom() non-existent should not error: %v", err)
	}
	if s == nil || *s != (Settings{}) {
		t.Error("LoadFrom() non-existent should return empty settings")
	}
}

func TestSettings_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() with invalid JSON should error")
	}
}

func TestSettings_GetSet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"manager", "nsx.example.com", "nsx.example.com"},
		{"port", "8443", "8443"},
		{"insecure", "true", "true"},
		{"insecure", "false", ""},
		{"domain", "prod", "prod"},
		{"audit_max_size_mb", "10", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			s := &Settings{}
			if err := s.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q, %q) error: %v", tt.key, tt.value, err)
			}
			got, err := s.Get(tt.key)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSettings_SetInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"network", "x"},
		{"port", "https"},
		{"port", "70000"},
		{"insecure", "maybe"},
		{"audit_max_backups", "-1"},
	}
	for _, tt := range tests {
		s := &Settings{}
		err := s.Set(tt.key, tt.value)
		if !errors.Is(err, util.ErrValidationFailed) {
			t.Errorf("Set(%q, %q) error = %v, want validation error", tt.key, tt.value, err)
		}
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if !sort.StringsAreSorted(keys) {
		t.Errorf("Keys() not sorted: %v", keys)
	}
	s := &Settings{}
	for _, k := range keys {
		if _, err := s.Get(k); err != nil {
			t.Errorf("Get(%q) error: %v", k, err)
		}
	}
}
