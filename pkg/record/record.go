// Package record wraps the JSON objects returned by the manager.
//
// Resources are handled generically: a Record exposes the handful of keys
// every resource carries (id, path, display_name, resource_type) and leaves
// the rest of the document to gabs path access.
package record

import (
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs/v2"
)

// Record is a single JSON object returned by the API.
type Record struct {
	c *gabs.Container
}

// New returns an empty object record.
func New() *Record {
	return &Record{c: gabs.New()}
}

// Parse decodes a JSON document. An empty body yields nil.
func Parse(body []byte) (*Record, error) {
	if len(body) == 0 {
		return nil, nil
	}
	c, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	return &Record{c: c}, nil
}

// Wrap wraps an already decoded value.
func Wrap(v interface{}) *Record {
	return &Record{c: gabs.Wrap(v)}
}

// ID returns the "id" attribute.
func (r *Record) ID() string { return r.String("id") }

// Path returns the policy "path" attribute. Management-plane resources
// have none.
func (r *Record) Path() string { return r.String("path") }

// DisplayName returns the "display_name" attribute.
func (r *Record) DisplayName() string { return r.String("display_name") }

// ResourceType returns the "resource_type" attribute.
func (r *Record) ResourceType() string { return r.String("resource_type") }

// String returns a top-level or dotted attribute as a string. Numbers and
// booleans are formatted; missing or structured values give "".
func (r *Record) String(key string) string {
	if r == nil || r.c == nil {
		return ""
	}
	return stringify(r.c.Path(key).Data())
}

// Has reports whether the dotted attribute exists.
func (r *Record) Has(key string) bool {
	return r != nil && r.c != nil && r.c.ExistsP(key)
}

// Get returns the nested value at the given hierarchy, or nil.
func (r *Record) Get(hierarchy ...string) interface{} {
	if r == nil || r.c == nil {
		return nil
	}
	return r.c.Search(hierarchy...).Data()
}

// Child returns the nested object at the given hierarchy as a Record, or
// nil when it is absent.
func (r *Record) Child(hierarchy ...string) *Record {
	if r == nil || r.c == nil || !r.c.Exists(hierarchy...) {
		return nil
	}
	return &Record{c: r.c.Search(hierarchy...)}
}

// Items returns the array at the given hierarchy as records.
func (r *Record) Items(hierarchy ...string) []*Record {
	if r == nil || r.c == nil || !r.c.Exists(hierarchy...) {
		return nil
	}
	children := r.c.Search(hierarchy...).Children()
	out := make([]*Record, 0, len(children))
	for _, child := range children {
		out = append(out, &Record{c: child})
	}
	return out
}

// Set stores value at the given hierarchy, creating intermediate objects.
func (r *Record) Set(value interface{}, hierarchy ...string) error {
	_, err := r.c.Set(value, hierarchy...)
	return err
}

// Delete removes the value at the given hierarchy.
func (r *Record) Delete(hierarchy ...string) error {
	return r.c.Delete(hierarchy...)
}

// Data returns the decoded document.
func (r *Record) Data() interface{} {
	if r == nil || r.c == nil {
		return nil
	}
	return r.c.Data()
}

// Bytes returns the compact JSON encoding.
func (r *Record) Bytes() []byte {
	return r.c.Bytes()
}

// Indent returns the JSON encoding indented by four spaces.
func (r *Record) Indent() string {
	return r.c.StringIndent("", "    ")
}

// MarshalJSON implements json.Marshaler.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil || r.c == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.c.Data())
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case bool, int, int64, json.Number:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
