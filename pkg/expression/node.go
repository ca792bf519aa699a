// Package expression builds group membership expressions.
//
// An expression is a flat ordered list of nodes in which conjunction
// markers sit between the membership criteria they join. Comma-separated
// clauses form a NestedExpression whose members are always joined by AND.
package expression

import "encoding/json"

// Node is one element of a membership expression.
type Node interface {
	// ResourceType is the API discriminator of the node.
	ResourceType() string
	// memberType is the member type the node selects, "" when it has none
	// or mixes several.
	memberType() string
}

// Conjunction joins the nodes before and after it.
type Conjunction struct {
	Operator string // "AND" or "OR"
}

func (Conjunction) ResourceType() string { return "ConjunctionOperator" }
func (Conjunction) memberType() string { return "" }

func (c Conjunction) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Operator     string `json:"conjunction_operator"`
		ResourceType string `json:"resource_type"`
	}{c.Operator, c.ResourceType()})
}

// Condition matches members of one type on a key.
type Condition struct {
	MemberType string
	Key        string
	Operator   string
	Value      string
}

func (Condition) ResourceType() string { return "Condition" }
func (c Condition) memberType() string { return c.MemberType }

func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MemberType   string `json:"member_type"`
		Key          string `json:"key"`
		Operator     string `json:"operator"`
		Value        string `json:"value"`
		ResourceType string `json:"resource_type"`
	}{c.MemberType, c.Key, c.Operator, c.Value, c.ResourceType()})
}

// NestedExpression is a parenthesised group of AND-joined nodes.
type NestedExpression struct {
	Expressions []Node
}

func (NestedExpression) ResourceType() string { return "NestedExpression" }

func (n NestedExpression) memberType() string {
	mt := ""
	for _, e := range n.Expressions {
		if _, ok := e.(Conjunction); ok {
			continue
		}
		switch {
		case mt == "":
			mt = e.memberType()
		case e.memberType() != mt:
			return ""
		}
	}
	return mt
}

func (n NestedExpression) MarshalJSON() ([]byte, error) {
	exprs := n.Expressions
	if exprs == nil {
		exprs = []Node{}
	}
	return json.Marshal(struct {
		ResourceType string `json:"resource_type"`
		Expressions  []Node `json:"expressions"`
	}{n.ResourceType(), exprs})
}

// PathExpression selects members by policy path.
type PathExpression struct {
	Paths []string
}

func (PathExpression) ResourceType() string { return "PathExpression" }
func (PathExpression) memberType() string { return "" }

func (p PathExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string   `json:"resource_type"`
		Paths        []string `json:"paths"`
	}{p.ResourceType(), p.Paths})
}

// ExternalIDExpression selects VMs or VIFs by external id.
type ExternalIDExpression struct {
	MemberType  string
	ExternalIDs []string
}

func (ExternalIDExpression) ResourceType() string { return "ExternalIDExpression" }
func (e ExternalIDExpression) memberType() string { return e.MemberType }

func (e ExternalIDExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string   `json:"resource_type"`
		MemberType   string   `json:"member_type"`
		ExternalIDs  []string `json:"external_ids"`
	}{e.ResourceType(), e.MemberType, e.ExternalIDs})
}

// IPAddressExpression selects addresses, CIDRs and ranges.
type IPAddressExpression struct {
	Addresses []string
}

func (IPAddressExpression) ResourceType() string { return "IPAddressExpression" }
func (IPAddressExpression) memberType() string { return "" }

func (e IPAddressExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string   `json:"resource_type"`
		Addresses    []string `json:"ip_addresses"`
	}{e.ResourceType(), e.Addresses})
}

// MACAddressExpression selects hardware addresses.
type MACAddressExpression struct {
	Addresses []string
}

func (MACAddressExpression) ResourceType() string { return "MACAddressExpression" }
func (MACAddressExpression) memberType() string { return "" }

func (e MACAddressExpression) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ResourceType string   `json:"resource_type"`
		Addresses    []string `json:"mac_addresses"`
	}{e.ResourceType(), e.Addresses})
}
