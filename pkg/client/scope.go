package client

import (
	"fmt"
	"strings"
)

// API path prefixes.
const (
	PolicyPrefix        = "/policy/api/v1"
	GlobalManagerPrefix = "/global-manager/api/v1"
	ManagerPrefix       = "/api/v1"

	policyInfra       = PolicyPrefix + "/infra"
	policyGlobalInfra = PolicyPrefix + "/global-infra"
	gmGlobalInfra     = GlobalManagerPrefix + "/global-infra"
)

// Scope selects which configuration tree a request addresses. The zero
// value leaves paths untouched.
type Scope struct {
	// Global addresses the global configuration replicated to a local
	// manager (/policy/api/v1/global-infra).
	Global bool
	// GlobalManager sends requests to a global manager's own API tree.
	GlobalManager bool
	// Org and Project scope policy requests to a multi-tenancy project.
	// Org defaults to "default" when only Project is set.
	Org     string
	Project string
}

// IsZero reports whether the scope leaves paths unchanged.
func (s Scope) IsZero() bool {
	return !s.Global && !s.GlobalManager && s.Project == ""
}

// Rewrite maps a canonical local-manager path into the configured scope.
// It is idempotent and prefixes only match on whole path segments.
func (s Scope) Rewrite(path string) string {
	switch {
	case s.GlobalManager:
		path = toGlobalManager(path)
	case s.Global:
		path = replacePrefix(path, policyInfra, policyGlobalInfra)
	}
	if s.Project != "" {
		path = s.toProject(path)
	}
	return path
}

func toGlobalManager(path string) string {
	for _, r := range []struct{ from, to string }{
		{policyInfra, gmGlobalInfra},
		{policyGlobalInfra, gmGlobalInfra},
		{PolicyPrefix, GlobalManagerPrefix},
		{ManagerPrefix, GlobalManagerPrefix},
	} {
		if hasSegmentPrefix(path, r.from) {
			return r.to + path[len(r.from):]
		}
	}
	return path
}

func (s Scope) toProject(path string) string {
	if strings.Contains(path, "search/query") {
		return path
	}
	org := s.Org
	if org == "" {
		org = "default"
	}
	for _, prefix := range []string{PolicyPrefix, GlobalManagerPrefix} {
		if !hasSegmentPrefix(path, prefix) {
			continue
		}
		rest := path[len(prefix):]
		if strings.HasPrefix(rest, "/orgs/") {
			return path
		}
		return prefix + fmt.Sprintf("/orgs/%s/projects/%s", org, s.Project) + rest
	}
	return path
}

func replacePrefix(path, from, to string) string {
	if hasSegmentPrefix(path, from) {
		return to + path[len(from):]
	}
	return path
}

// hasSegmentPrefix reports whether prefix matches path up to a segment
// boundary ("/", "?" or end of string).
func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	if len(path) == len(prefix) {
		return true
	}
	switch path[len(prefix)] {
	case '/', '?':
		return true
	}
	return false
}
