package tags

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec    string
		want    Tag
		wantErr bool
	}{
		{"env:prod", Tag{Scope: "env", Tag: "prod"}, false},
		{"billing", Tag{Tag: "billing"}, false},
		{":billing", Tag{Tag: "billing"}, false},
		{"a:b:c", Tag{}, true},
		{"env:", Tag{}, true},
		{"", Tag{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseSpec(tt.spec)
			if tt.wantErr {
				assert.True(t, errors.Is(err, util.ErrValidationFailed), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	parsed, err := Parse([]string{"env:prod", "billing"})
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Scope: "env", Tag: "prod"}, {Tag: "billing"}}, parsed)

	specs := Specs(parsed)
	assert.Equal(t, []string{"env:prod", ":billing"}, specs)

	again, err := Parse(specs)
	require.NoError(t, err)
	assert.Equal(t, parsed, again)
}

func TestParseCollectsErrors(t *testing.T) {
	_, err := Parse([]string{"ok", "a:b:c", "x:y:z"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))

	var ve *util.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 2)
	assert.Equal(t, "incorrect tag spec format: a:b:c", ve.Errors[0])
}

func TestMergeAndRemove(t *testing.T) {
	existing := []Tag{{Scope: "env", Tag: "prod"}, {Tag: "web"}}
	added := []Tag{{Tag: "web"}, {Scope: "owner", Tag: "ops"}}

	merged := Merge(existing, added)
	assert.Equal(t, []Tag{{Scope: "env", Tag: "prod"}, {Tag: "web"}, {Scope: "owner", Tag: "ops"}}, merged)

	assert.Equal(t, []Tag{{Scope: "owner", Tag: "ops"}}, Remove(merged, existing))
}

func TestFromRecord(t *testing.T) {
	rec, err := record.Parse([]byte(`{"display_name":"vm1","tags":[{"scope":"env","tag":"prod"},{"tag":"db"}]}`))
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Scope: "env", Tag: "prod"}, {Tag: "db"}}, FromRecord(rec))
	assert.Empty(t, FromRecord(record.New()))
}
