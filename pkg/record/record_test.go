package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	rec, err := Parse([]byte(`{"id":"t1","display_name":"T1 Blue","path":"/infra/tier-1s/t1",
		"resource_type":"Tier1","ha":{"mode":"ACTIVE_STANDBY"},"count":3,"enabled":true,
		"tags":[{"scope":"env","tag":"prod"}]}`))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "t1", rec.ID())
	assert.Equal(t, "T1 Blue", rec.DisplayName())
	assert.Equal(t, "/infra/tier-1s/t1", rec.Path())
	assert.Equal(t, "Tier1", rec.ResourceType())
	assert.Equal(t, "ACTIVE_STANDBY", rec.String("ha.mode"))
	assert.Equal(t, "3", rec.String("count"))
	assert.Equal(t, "true", rec.String("enabled"))
	assert.Equal(t, "", rec.String("missing"))
	assert.True(t, rec.Has("ha.mode"))
	assert.False(t, rec.Has("ha.other"))

	tags := rec.Items("tags")
	require.Len(t, tags, 1)
	assert.Equal(t, "prod", tags[0].String("tag"))
}

func TestParseEmptyAndInvalid(t *testing.T) {
	rec, err := Parse(nil)
	assert.NoError(t, err)
	assert.Nil(t, rec)

	_, err = Parse([]byte("{not json"))
	assert.Error(t, err)
}

func TestNilRecordGetters(t *testing.T) {
	var rec *Record
	assert.Equal(t, "", rec.ID())
	assert.Equal(t, "", rec.Path())
	assert.Nil(t, rec.Get("x"))
	assert.Nil(t, rec.Items("results"))
}

func TestSetAndMarshal(t *testing.T) {
	rec := New()
	require.NoError(t, rec.Set("web", "display_name"))
	require.NoError(t, rec.Set("/infra/tier-1s/t1", "connectivity_path"))
	require.NoError(t, rec.Set([]interface{}{"100"}, "vlan_ids"))

	b, err := rec.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"display_name":"web","connectivity_path":"/infra/tier-1s/t1","vlan_ids":["100"]}`, string(b))
	assert.Contains(t, rec.Indent(), "\n    \"display_name\"")
}

func TestPage(t *testing.T) {
	rec, err := Parse([]byte(`{"results":[{"id":"a"},{"id":"b"}],"result_count":5,"cursor":"2"}`))
	require.NoError(t, err)

	page := AsPage(rec)
	assert.Len(t, page.Results(), 2)
	assert.Equal(t, "2", page.Cursor())
	n, ok := page.ResultCount()
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	empty := AsPage(nil)
	assert.Empty(t, empty.Results())
	_, ok = empty.ResultCount()
	assert.False(t, ok)
}
