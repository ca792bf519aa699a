package expression

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/nsxctl/pkg/util"
)

func toJSON(t *testing.T, nodes []Node) string {
	t.Helper()
	b, err := json.Marshal(nodes)
	require.NoError(t, err)
	return string(b)
}

func TestNestedGroupUsesSingleAnd(t *testing.T) {
	b, err := Parse([]string{"OR:VirtualMachine:Name:EQUALS:vm1,AND:VirtualMachine:Tag:EQUALS:prod"})
	require.NoError(t, err)

	nodes := b.Nodes()
	require.Len(t, nodes, 1)
	nest, ok := nodes[0].(NestedExpression)
	require.True(t, ok, "expected NestedExpression, got %T", nodes[0])
	require.Len(t, nest.Expressions, 3)
	assert.Equal(t, Conjunction{Operator: And}, nest.Expressions[1])

	assert.JSONEq(t, `[{"resource_type":"NestedExpression","expressions":[
		{"member_type":"VirtualMachine","key":"Name","operator":"EQUALS","value":"vm1","resource_type":"Condition"},
		{"conjunction_operator":"AND","resource_type":"ConjunctionOperator"},
		{"member_type":"VirtualMachine","key":"Tag","operator":"EQUALS","value":"prod","resource_type":"Condition"}]}]`,
		toJSON(t, nodes))
}

func TestNestedGroupRejectsOr(t *testing.T) {
	_, err := Parse([]string{"OR:VirtualMachine:Name:EQUALS:vm1,OR:VirtualMachine:Tag:EQUALS:prod"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
	assert.Contains(t, err.Error(), "nested conjunction must be AND")
}

func TestNestedGroupEmptyConjunctionMeansAnd(t *testing.T) {
	b, err := Parse([]string{":VirtualMachine:Name:STARTSWITH:web,:VirtualMachine:OSName:CONTAINS:Linux"})
	require.NoError(t, err)
	nest := b.Nodes()[0].(NestedExpression)
	assert.Equal(t, Conjunction{Operator: And}, nest.Expressions[1])
}

func TestNestedGroupRejectsMixedMemberTypes(t *testing.T) {
	_, err := Parse([]string{"OR:VirtualMachine:Name:EQUALS:vm1,AND:IPSet:Tag:EQUALS:prod"})
	assert.Error(t, err)
}

func TestTopLevelConjunctions(t *testing.T) {
	b, err := Parse([]string{
		"AND:VirtualMachine:Tag:EQUALS:web",
		":VirtualMachine:Tag:EQUALS:app",
		"AND:VirtualMachine:Name:STARTSWITH:db",
		"OR:Segment:Tag:EQUALS:dmz",
	})
	require.NoError(t, err)

	nodes := b.Nodes()
	require.Len(t, nodes, 7)
	_, first := nodes[0].(Condition)
	assert.True(t, first, "the first element's conjunction is ignored")
	assert.Equal(t, Conjunction{Operator: Or}, nodes[1])
	assert.Equal(t, Conjunction{Operator: And}, nodes[3])
	assert.Equal(t, Conjunction{Operator: Or}, nodes[5])
	assert.Equal(t, "Segment", nodes[6].(Condition).MemberType)
}

func TestTopLevelAndRequiresSameMemberType(t *testing.T) {
	_, err := Parse([]string{
		"OR:VirtualMachine:Tag:EQUALS:web",
		"AND:IPSet:Tag:EQUALS:web",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "same member type")

	_, err = Parse([]string{
		"OR:VirtualMachine:Tag:EQUALS:web,AND:VirtualMachine:Name:EQUALS:a",
		"AND:VirtualMachine:Tag:EQUALS:prod",
	})
	assert.NoError(t, err, "a nested group of one member type can be AND-ed with that type")
}

func TestGroupJoinsPreviousElement(t *testing.T) {
	b, err := Parse([]string{
		"OR:IPSet:Tag:EQUALS:x",
		"OR:VirtualMachine:Name:EQUALS:a,AND:VirtualMachine:Tag:EQUALS:b",
	})
	require.NoError(t, err)
	nodes := b.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, Conjunction{Operator: Or}, nodes[1])
	_, ok := nodes[2].(NestedExpression)
	assert.True(t, ok)
}

func TestParseClause(t *testing.T) {
	tests := []struct {
		clause  string
		want    Condition
		conj    string
		wantErr bool
	}{
		{"or:virtualmachine:name:equals:vm1", Condition{"VirtualMachine", "Name", "EQUALS", "vm1"}, Or, false},
		{" AND : IPSet : tag : contains : web ", Condition{"IPSet", "Tag", "CONTAINS", "web"}, And, false},
		{":VirtualMachine:ComputerName:ENDSWITH:.corp", Condition{"VirtualMachine", "ComputerName", "ENDSWITH", ".corp"}, "", false},
		{":VirtualMachine:computername:EQUALS:host1", Condition{"VirtualMachine", "ComputerName", "EQUALS", "host1"}, "", false},
		{":SegmentPort:Tag:EQUALS:scope|value", Condition{"SegmentPort", "Tag", "EQUALS", "scope|value"}, "", false},
		{":LogicalSwitch:Tag:NOTEQUALS:a:b", Condition{"LogicalSwitch", "Tag", "NOTEQUALS", "a:b"}, "", false},
		{"VirtualMachine:Name:EQUALS:vm1", Condition{}, "", true},
		{"XOR:VirtualMachine:Name:EQUALS:vm1", Condition{}, "", true},
		{":Host:Name:EQUALS:h1", Condition{}, "", true},
		{":IPSet:Name:EQUALS:x", Condition{}, "", true},
		{":VirtualMachine:Uuid:EQUALS:x", Condition{}, "", true},
		{":VirtualMachine:Name:MATCHES:x", Condition{}, "", true},
		{":VirtualMachine:Name:EQUALS:", Condition{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.clause, func(t *testing.T) {
			conj, got, err := ParseClause(tt.clause)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, util.ErrValidationFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.conj, conj)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReportsEveryBadClause(t *testing.T) {
	_, err := Parse([]string{"bad", ":VirtualMachine:Name:EQUALS:ok", "also:bad"})
	var ve *util.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 2)
}

func TestAdditionalSources(t *testing.T) {
	b, err := Parse([]string{":VirtualMachine:Tag:EQUALS:web"})
	require.NoError(t, err)

	require.NoError(t, b.AddPaths([]string{"/infra/segments/web"}))
	require.NoError(t, b.AddExternalIDs("VirtualMachine", []string{"5005-aaaa"}))
	require.NoError(t, b.AddIPAddresses([]string{"10.0.0.1", "10.1.0.0/16", "10.2.0.1-10.2.0.9"}))
	require.NoError(t, b.AddMACAddresses([]string{"00:50:56:aa:bb:cc"}))

	assert.JSONEq(t, `[
		{"member_type":"VirtualMachine","key":"Tag","operator":"EQUALS","value":"web","resource_type":"Condition"},
		{"conjunction_operator":"OR","resource_type":"ConjunctionOperator"},
		{"resource_type":"PathExpression","paths":["/infra/segments/web"]},
		{"conjunction_operator":"OR","resource_type":"ConjunctionOperator"},
		{"resource_type":"ExternalIDExpression","member_type":"VirtualMachine","external_ids":["5005-aaaa"]},
		{"conjunction_operator":"OR","resource_type":"ConjunctionOperator"},
		{"resource_type":"IPAddressExpression","ip_addresses":["10.0.0.1","10.1.0.0/16","10.2.0.1-10.2.0.9"]},
		{"conjunction_operator":"OR","resource_type":"ConjunctionOperator"},
		{"resource_type":"MACAddressExpression","mac_addresses":["00:50:56:aa:bb:cc"]}]`,
		toJSON(t, b.Nodes()))
}

func TestAdditionalSourcesValidation(t *testing.T) {
	b := &Builder{}
	assert.Error(t, b.AddPaths(nil))
	assert.Error(t, b.AddExternalIDs("VirtualMachine", nil))
	assert.Error(t, b.AddIPAddresses([]string{"10.0.0.300"}))
	assert.Error(t, b.AddMACAddresses([]string{"zz:zz"}))
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "[]", toJSON(t, b.Nodes()))
}
