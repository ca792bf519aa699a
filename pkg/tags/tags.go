// Package tags converts between "scope:value" tag specs and API tags.
package tags

import (
	"fmt"
	"strings"

	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// Tag is a resource tag. An empty Scope means the tag is unscoped.
type Tag struct {
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
	Tag   string `json:"tag" yaml:"tag"`
}

// Spec renders the tag as "scope:value", or ":value" when unscoped.
func (t Tag) Spec() string {
	return t.Scope + ":" + t.Tag
}

// ParseSpec parses "scope:value", ":value" or "value".
func ParseSpec(spec string) (Tag, error) {
	parts := strings.Split(spec, ":")
	var t Tag
	switch len(parts) {
	case 1:
		t.Tag = parts[0]
	case 2:
		t.Scope, t.Tag = parts[0], parts[1]
	default:
		return Tag{}, util.NewValidationError(fmt.Sprintf("incorrect tag spec format: %s", spec))
	}
	if t.Tag == "" {
		return Tag{}, util.NewValidationError(fmt.Sprintf("tag spec %q has no value", spec))
	}
	return t, nil
}

// Parse parses a list of specs, reporting every malformed entry.
func Parse(specs []string) ([]Tag, error) {
	v := &util.ValidationBuilder{}
	out := make([]Tag, 0, len(specs))
	for _, s := range specs {
		t, err := ParseSpec(s)
		if err != nil {
			v.Merge(err)
			continue
		}
		out = append(out, t)
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	return out, nil
}

// Specs renders tags in canonical spec form.
func Specs(tags []Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Spec())
	}
	return out
}

// Merge returns existing followed by the added tags not already present.
func Merge(existing, added []Tag) []Tag {
	seen := make(map[Tag]bool, len(existing)+len(added))
	out := make([]Tag, 0, len(existing)+len(added))
	for _, list := range [][]Tag{existing, added} {
		for _, t := range list {
			if seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Remove returns existing without the given tags.
func Remove(existing, removed []Tag) []Tag {
	drop := make(map[Tag]bool, len(removed))
	for _, t := range removed {
		drop[t] = true
	}
	out := make([]Tag, 0, len(existing))
	for _, t := range existing {
		if !drop[t] {
			out = append(out, t)
		}
	}
	return out
}

// FromRecord reads the "tags" array of a resource.
func FromRecord(rec *record.Record) []Tag {
	var out []Tag
	for _, item := range rec.Items("tags") {
		out = append(out, Tag{Scope: item.String("scope"), Tag: item.String("tag")})
	}
	return out
}
