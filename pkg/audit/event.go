// Package audit records mutating API requests to a JSON-lines log.
package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is one mutating request sent to (or withheld from) a manager.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Manager   string        `json:"manager"`
	Method    string        `json:"method"`
	Path      string        `json:"path"`
	Status    int           `json:"status,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration"`
}

// NewEvent creates a new audit event
func NewEvent(user, manager, method, path string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Manager:   manager,
		Method:    method,
		Path:      path,
	}
}

// WithStatus records the HTTP status returned by the manager.
func (e *Event) WithStatus(code int) *Event {
	e.Status = code
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Error = ""
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the request duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithDryRun marks a request that was built but not sent.
func (e *Event) WithDryRun(dryRun bool) *Event {
	e.DryRun = dryRun
	return e
}

// Filter defines criteria for querying audit events
type Filter struct {
	Manager     string
	User        string
	Method      string
	PathPrefix  string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// Matches reports whether the event satisfies every set criterion.
func (f Filter) Matches(e *Event) bool {
	switch {
	case f.Manager != "" && e.Manager != f.Manager:
		return false
	case f.User != "" && e.User != f.User:
		return false
	case f.Method != "" && !strings.EqualFold(e.Method, f.Method):
		return false
	case f.PathPrefix != "" && !strings.HasPrefix(e.Path, f.PathPrefix):
		return false
	case !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime):
		return false
	case !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime):
		return false
	case f.SuccessOnly && !e.Success:
		return false
	case f.FailureOnly && e.Success:
		return false
	}
	return true
}

// page applies offset and limit.
func (f Filter) page(events []*Event) []*Event {
	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return nil
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(events) {
		events = events[:f.Limit]
	}
	return events
}
