package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeRewrite(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		in    string
		want  string
	}{
		{"zero scope", Scope{}, "/policy/api/v1/infra/segments", "/policy/api/v1/infra/segments"},
		{"global local manager", Scope{Global: true}, "/policy/api/v1/infra/segments", "/policy/api/v1/global-infra/segments"},
		{"global leaves mp api", Scope{Global: true}, "/api/v1/cluster", "/api/v1/cluster"},
		{"global matches segment only", Scope{Global: true}, "/policy/api/v1/infrastructure", "/policy/api/v1/infrastructure"},
		{"gm infra", Scope{GlobalManager: true}, "/policy/api/v1/infra/tier-0s", "/global-manager/api/v1/global-infra/tier-0s"},
		{"gm global-infra", Scope{GlobalManager: true}, "/policy/api/v1/global-infra/tier-0s", "/global-manager/api/v1/global-infra/tier-0s"},
		{"gm other policy", Scope{GlobalManager: true}, "/policy/api/v1/search/query?query=x", "/global-manager/api/v1/search/query?query=x"},
		{"gm mp api", Scope{GlobalManager: true}, "/api/v1/node/version", "/global-manager/api/v1/node/version"},
		{"gm wins over global", Scope{Global: true, GlobalManager: true}, "/policy/api/v1/infra", "/global-manager/api/v1/global-infra"},
		{"project", Scope{Project: "blue"}, "/policy/api/v1/infra/segments", "/policy/api/v1/orgs/default/projects/blue/infra/segments"},
		{"project with org", Scope{Org: "acme", Project: "blue"}, "/policy/api/v1/infra", "/policy/api/v1/orgs/acme/projects/blue/infra"},
		{"project skips search", Scope{Project: "blue"}, "/policy/api/v1/search/query?query=a", "/policy/api/v1/search/query?query=a"},
		{"project leaves mp api", Scope{Project: "blue"}, "/api/v1/cluster", "/api/v1/cluster"},
		{"project and gm", Scope{GlobalManager: true, Project: "blue"}, "/policy/api/v1/infra/segments",
			"/global-manager/api/v1/orgs/default/projects/blue/global-infra/segments"},
		{"project and global", Scope{Global: true, Project: "blue"}, "/policy/api/v1/infra/segments",
			"/policy/api/v1/orgs/default/projects/blue/global-infra/segments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.scope.Rewrite(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, tt.scope.Rewrite(got), "rewrite must be idempotent")
		})
	}
}

func TestScopeIsZero(t *testing.T) {
	assert.True(t, Scope{}.IsZero())
	assert.True(t, Scope{Org: "acme"}.IsZero())
	assert.False(t, Scope{Project: "p"}.IsZero())
	assert.False(t, Scope{Global: true}.IsZero())
}
