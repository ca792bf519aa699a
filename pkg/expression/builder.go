package expression

import (
	"fmt"
	"strings"

	"github.com/newtron-network/nsxctl/pkg/util"
)

// Conjunction operators.
const (
	And = "AND"
	Or  = "OR"
)

// Member types accepted in conditions, keyed by their lower-case form.
var memberTypes = map[string]string{
	"virtualmachine": "VirtualMachine",
	"ipset":          "IPSet",
	"logicalport":    "LogicalPort",
	"logicalswitch":  "LogicalSwitch",
	"segment":        "Segment",
	"segmentport":    "SegmentPort",
}

// Keys a VirtualMachine condition may match on. Other member types only
// match on Tag.
var vmKeys = map[string]string{
	"tag":          "Tag",
	"name":         "Name",
	"osname":       "OSName",
	"computername": "ComputerName",
}

var operators = map[string]bool{
	"EQUALS":     true,
	"CONTAINS":   true,
	"STARTSWITH": true,
	"ENDSWITH":   true,
	"NOTEQUALS":  true,
}

// Builder accumulates a top-level expression list.
type Builder struct {
	nodes []Node
}

// Parse builds an expression from clause groups. Each group is one
// argument of comma-separated "conjunction:member_type:key:operator:value"
// clauses. Every malformed clause is reported.
func Parse(groups []string) (*Builder, error) {
	b := &Builder{}
	v := &util.ValidationBuilder{}
	for _, g := range groups {
		v.Merge(b.AddClauses(g))
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	return b, nil
}

// Nodes returns the built expression list.
func (b *Builder) Nodes() []Node {
	if b.nodes == nil {
		return []Node{}
	}
	return b.nodes
}

// Len returns the number of top-level nodes, markers included.
func (b *Builder) Len() int {
	return len(b.nodes)
}

// AddClauses parses one clause group and appends it. A single clause is
// appended as a Condition, several as a NestedExpression. The first
// clause's conjunction joins the group to the previous element.
func (b *Builder) AddClauses(group string) error {
	raw := strings.Split(group, ",")
	conds := make([]Condition, 0, len(raw))
	var joins []string
	v := &util.ValidationBuilder{}
	for i, clause := range raw {
		conj, cond, err := ParseClause(clause)
		if err != nil {
			v.Merge(err)
			continue
		}
		if i > 0 && conj == Or {
			v.AddErrorf("nested conjunction must be AND: %s", strings.TrimSpace(clause))
			continue
		}
		joins = append(joins, conj)
		conds = append(conds, cond)
	}
	if v.HasErrors() {
		return v.Build()
	}

	if len(conds) == 1 {
		return b.append(joins[0], conds[0])
	}

	nest := NestedExpression{}
	for i, c := range conds {
		if i > 0 {
			if c.MemberType != conds[0].MemberType {
				return util.NewValidationError(fmt.Sprintf(
					"AND joins member types %s and %s: %s", conds[0].MemberType, c.MemberType, group))
			}
			nest.Expressions = append(nest.Expressions, Conjunction{Operator: And})
		}
		nest.Expressions = append(nest.Expressions, c)
	}
	return b.append(joins[0], nest)
}

// AddPaths appends a PathExpression joined with OR.
func (b *Builder) AddPaths(paths []string) error {
	if len(paths) == 0 {
		return util.NewValidationError("no paths to add")
	}
	return b.append(Or, PathExpression{Paths: paths})
}

// AddExternalIDs appends an ExternalIDExpression joined with OR.
func (b *Builder) AddExternalIDs(memberType string, ids []string) error {
	if len(ids) == 0 {
		return util.NewValidationError(fmt.Sprintf("no %s external ids to add", memberType))
	}
	return b.append(Or, ExternalIDExpression{MemberType: memberType, ExternalIDs: ids})
}

// AddIPAddresses validates and appends addresses, CIDRs or ranges.
func (b *Builder) AddIPAddresses(addrs []string) error {
	v := &util.ValidationBuilder{}
	for _, a := range addrs {
		if err := util.ValidateIPAddress(a); err != nil {
			v.AddError(err.Error())
		}
	}
	v.Add(len(addrs) > 0, "no IP addresses to add")
	if err := v.Build(); err != nil {
		return err
	}
	return b.append(Or, IPAddressExpression{Addresses: addrs})
}

// AddMACAddresses validates and appends hardware addresses.
func (b *Builder) AddMACAddresses(macs []string) error {
	v := &util.ValidationBuilder{}
	for _, m := range macs {
		if err := util.ValidateMAC(m); err != nil {
			v.AddError(err.Error())
		}
	}
	v.Add(len(macs) > 0, "no MAC addresses to add")
	if err := v.Build(); err != nil {
		return err
	}
	return b.append(Or, MACAddressExpression{Addresses: macs})
}

// append joins n to the list. An empty conjunction means OR; the
// conjunction of the first element is ignored.
func (b *Builder) append(conj string, n Node) error {
	if len(b.nodes) == 0 {
		b.nodes = append(b.nodes, n)
		return nil
	}
	if conj == "" {
		conj = Or
	}
	if conj == And {
		prev := b.nodes[len(b.nodes)-1].memberType()
		if prev == "" || prev != n.memberType() {
			return util.NewValidationError(fmt.Sprintf(
				"AND may only join criteria of the same member type (%s and %s)",
				describe(b.nodes[len(b.nodes)-1]), describe(n)))
		}
	}
	b.nodes = append(b.nodes, Conjunction{Operator: conj}, n)
	return nil
}

func describe(n Node) string {
	if mt := n.memberType(); mt != "" {
		return mt
	}
	return n.ResourceType()
}

// ParseClause parses "conjunction:member_type:key:operator:value". The
// value is the remainder of the clause and may itself contain colons.
func ParseClause(clause string) (string, Condition, error) {
	clause = strings.TrimSpace(clause)
	fields := strings.SplitN(clause, ":", 5)
	if len(fields) != 5 {
		return "", Condition{}, util.NewValidationError(fmt.Sprintf(
			"condition %q not in conjunction:member_type:key:operator:value format", clause))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	v := &util.ValidationBuilder{}
	conj := strings.ToUpper(fields[0])
	if conj != "" && conj != And && conj != Or {
		v.AddErrorf("conjunction must be empty, AND or OR: %s", clause)
	}

	mt, ok := memberTypes[strings.ToLower(fields[1])]
	if !ok {
		v.AddErrorf("member type must be one of VirtualMachine, IPSet, LogicalPort, LogicalSwitch, Segment, SegmentPort: %s", clause)
	}

	var key string
	if mt == "VirtualMachine" {
		if key, ok = vmKeys[strings.ToLower(fields[2])]; !ok {
			v.AddErrorf("VirtualMachine must match on Tag, Name, OSName or ComputerName: %s", clause)
		}
	} else if mt != "" {
		if strings.ToLower(fields[2]) == "tag" {
			key = "Tag"
		} else {
			v.AddErrorf("%s matches only Tag: %s", mt, clause)
		}
	}

	op := strings.ToUpper(fields[3])
	if !operators[op] {
		v.AddErrorf("operator must be one of EQUALS, CONTAINS, STARTSWITH, ENDSWITH, NOTEQUALS: %s", clause)
	}

	v.Add(fields[4] != "", fmt.Sprintf("condition has no value: %s", clause))

	if err := v.Build(); err != nil {
		return "", Condition{}, err
	}
	return conj, Condition{MemberType: mt, Key: key, Operator: op, Value: fields[4]}, nil
}
