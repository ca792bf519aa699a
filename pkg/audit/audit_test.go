package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "nsx-a.example.com", "PATCH", "/policy/api/v1/infra/segments/web")

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Manager != "nsx-a.example.com" {
		t.Errorf("Manager = %q", event.Manager)
	}
	if event.Method != "PATCH" || event.Path != "/policy/api/v1/infra/segments/web" {
		t.Errorf("Method/Path = %q %q", event.Method, event.Path)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if other := NewEvent("alice", "m", "PATCH", "/x"); other.ID == event.ID {
		t.Error("event IDs should be unique")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("alice", "m", "DELETE", "/policy/api/v1/infra/tier-1s/t1").
		WithStatus(200).
		WithSuccess().
		WithDuration(time.Second).
		WithDryRun(false)

	if event.Status != 200 {
		t.Errorf("Status = %d", event.Status)
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("alice", "m", "PATCH", "/x").WithError(errors.New("Return code '400' not in list"))
	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error == "" {
		t.Error("Error should be recorded")
	}

	event = NewEvent("alice", "m", "PATCH", "/x").WithError(nil)
	if event.Error != "" {
		t.Errorf("Error = %q, want empty", event.Error)
	}
}

func newTestLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logPath
}

func TestFileLogger_Basic(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{})

	if logger.Path() != logPath {
		t.Errorf("Path() = %q", logger.Path())
	}

	event := NewEvent("alice", "nsx-a", "PATCH", "/policy/api/v1/infra/segments/web").
		WithStatus(200).
		WithSuccess()
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].ID != event.ID || events[0].Manager != "nsx-a" || events[0].Status != 200 {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	for _, e := range []*Event{
		NewEvent("alice", "nsx-a", "PATCH", "/policy/api/v1/infra/segments/web").WithSuccess(),
		NewEvent("bob", "nsx-a", "DELETE", "/policy/api/v1/infra/tier-1s/t1").WithError(errors.New("boom")),
		NewEvent("alice", "nsx-b", "POST", "/policy/api/v1/infra/domains/default/groups/g1").WithSuccess(),
		NewEvent("alice", "nsx-b", "patch", "/api/v1/cluster").WithDryRun(true).WithSuccess(),
	} {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by user", Filter{User: "alice"}, 3},
		{"by manager", Filter{Manager: "nsx-b"}, 2},
		{"by method case-insensitive", Filter{Method: "PATCH"}, 2},
		{"by path prefix", Filter{PathPrefix: "/policy/api/v1/infra/"}, 3},
		{"failures", Filter{FailureOnly: true}, 1},
		{"successes", Filter{SuccessOnly: true}, 3},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 3}, 1},
		{"offset beyond", Filter{Offset: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestFileLogger_QueryTimeFilter(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	old := NewEvent("alice", "m", "PATCH", "/a")
	old.Timestamp = time.Now().Add(-2 * time.Hour)
	recent := NewEvent("alice", "m", "PATCH", "/b")
	for _, e := range []*Event{old, recent} {
		if err := logger.Log(e); err != nil {
			t.Fatal(err)
		}
	}

	events, _ := logger.Query(Filter{StartTime: time.Now().Add(-time.Hour)})
	if len(events) != 1 || events[0].Path != "/b" {
		t.Errorf("StartTime filter returned %v", events)
	}
	events, _ = logger.Query(Filter{EndTime: time.Now().Add(-time.Hour)})
	if len(events) != 1 || events[0].Path != "/a" {
		t.Errorf("EndTime filter returned %v", events)
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{})
	if err := logger.Log(NewEvent("alice", "m", "PATCH", "/a")); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("{not json\n")
	f.Close()

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("Expected malformed line to be skipped, got %d events", len(events))
	}
}

func TestFileLogger_QueryNonExistent(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{})
	logger.Close()
	os.Remove(logPath)

	events, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query on missing file should not error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected 0 events, got %d", len(events))
	}
}

func TestFileLogger_LogAfterClose(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close should be a no-op: %v", err)
	}
	if err := logger.Log(NewEvent("a", "m", "PATCH", "/x")); err == nil {
		t.Error("Log on closed logger should fail")
	}
}

func TestFileLogger_RotationWithCleanup(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{
		MaxSize:    50,
		MaxBackups: 2,
	})

	for i := 0; i < 10; i++ {
		if err := logger.Log(NewEvent("alice", "m", "PATCH", "/policy/api/v1/infra/segments/web")); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(logPath + ".*")
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	if len(matches) == 0 {
		t.Error("Expected rotation to create backup files")
	}
	if len(matches) > 2 {
		t.Errorf("Expected at most 2 backup files, got %d", len(matches))
	}
}

func TestFileLogger_NewFileLoggerMkdirError(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/audit.log", RotationConfig{}); err == nil {
		t.Error("Expected error creating logger under /dev/null")
	}
}

func TestDefaultLogger(t *testing.T) {
	SetDefaultLogger(nil)
	defer SetDefaultLogger(nil)

	if DefaultLogger() != nil {
		t.Fatal("Expected no default logger")
	}

	logger, _ := newTestLogger(t, RotationConfig{})
	SetDefaultLogger(logger)

	l := DefaultLogger()
	if l == nil {
		t.Fatal("Expected default logger to be set")
	}
	if err := l.Log(NewEvent("alice", "m", "PATCH", "/x").WithSuccess()); err != nil {
		t.Errorf("Log failed: %v", err)
	}
	results, err := l.Query(Filter{})
	if err != nil {
		t.Errorf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 result, got %d", len(results))
	}
}
