package objects

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/newtron-network/nsxctl/pkg/client"
	"github.com/newtron-network/nsxctl/pkg/expression"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/resolver"
	"github.com/newtron-network/nsxctl/pkg/tags"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// Any matches every source, destination, service or scope.
const Any = "ANY"

// Policy categories, in evaluation order.
var PolicyCategories = []string{"Ethernet", "Emergency", "Infrastructure", "Environment", "Application"}

// Rule actions, directions and IP protocols.
var (
	RuleActions    = []string{"ALLOW", "DROP", "REJECT", "JUMP_TO_APPLICATION"}
	RuleDirections = []string{"IN", "OUT", "IN_OUT"}
	RuleProtocols  = []string{"IPV4", "IPV6", "IPV4_IPV6"}
)

// Revise operations for policy and rule positioning.
const (
	InsertTop    = "insert_top"
	InsertBottom = "insert_bottom"
	InsertBefore = "insert_before"
	InsertAfter  = "insert_after"
)

var positionOps = []string{InsertTop, InsertBottom, InsertBefore, InsertAfter}

// ============================================================================
// Domains and groups
// ============================================================================

// DomainSpec configures a domain.
type DomainSpec struct {
	Name        string
	Description string
}

// ConfigureDomain creates or updates a domain.
func (m *Manager) ConfigureDomain(ctx context.Context, spec DomainSpec) (*record.Record, error) {
	if spec.Name == "" {
		return nil, util.NewValidationError("domain name is required")
	}
	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	util.WithResource("domain", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/domains/"+util.IDFromName(spec.Name), payload)
}

// GroupSpec configures a group. Expressions are clause groups as accepted
// by expression.Parse. The other members are appended after them in
// field order, each joined with OR.
type GroupSpec struct {
	Name        string
	Domain      string
	Description string
	Expressions []string
	Segments    []string // segment names
	VMs         []string // VM display names
	Groups      []string // group names, "domain:name" for another domain
	VIFs        []string // VM display names whose interfaces become members
	IPs         []string
	MACs        []string
	Tags        []string
}

func (s *GroupSpec) validate() (*expression.Builder, []tags.Tag, error) {
	v := &util.ValidationBuilder{}
	v.Add(s.Name != "", "group name is required")
	b, err := expression.Parse(s.Expressions)
	v.Merge(err)
	for _, ip := range s.IPs {
		v.Merge(util.ValidateIPAddress(ip))
	}
	for _, mac := range s.MACs {
		v.Merge(util.ValidateMAC(mac))
	}
	tagList, err := tags.Parse(s.Tags)
	v.Merge(err)
	return b, tagList, v.Build()
}

// ConfigureGroup creates or updates a group.
func (m *Manager) ConfigureGroup(ctx context.Context, spec GroupSpec) (*record.Record, error) {
	b, tagList, err := spec.validate()
	if err != nil {
		return nil, err
	}
	domain := m.domainOr(spec.Domain)
	resource := fmt.Sprintf("group '%s'", spec.Name)

	if len(spec.Segments) > 0 {
		var paths []string
		for _, name := range spec.Segments {
			p, err := m.dependency(ctx, resource, "segment", "", name)
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
		if err := b.AddPaths(paths); err != nil {
			return nil, err
		}
	}
	if len(spec.VMs) > 0 {
		var ids []string
		for _, name := range spec.VMs {
			vm, err := m.searchVM(ctx, name)
			if err != nil {
				return nil, err
			}
			if vm == nil {
				return nil, util.NewDependencyError(resource, "virtual machine", name)
			}
			ids = append(ids, vm.String("external_id"))
		}
		if err := b.AddExternalIDs("VirtualMachine", ids); err != nil {
			return nil, err
		}
	}
	if len(spec.Groups) > 0 {
		var paths []string
		for _, g := range spec.Groups {
			p, err := m.groupPath(ctx, resource, domain, g)
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
		if err := b.AddPaths(paths); err != nil {
			return nil, err
		}
	}
	if len(spec.VIFs) > 0 {
		var ids []string
		for _, name := range spec.VIFs {
			vifs, err := m.vmInterfaces(ctx, resource, name)
			if err != nil {
				return nil, err
			}
			ids = append(ids, vifs...)
		}
		if err := b.AddExternalIDs("VirtualNetworkInterface", ids); err != nil {
			return nil, err
		}
	}
	if len(spec.IPs) > 0 {
		if err := b.AddIPAddresses(spec.IPs); err != nil {
			return nil, err
		}
	}
	if len(spec.MACs) > 0 {
		if err := b.AddMACAddresses(spec.MACs); err != nil {
			return nil, err
		}
	}

	payload := map[string]interface{}{
		"display_name": spec.Name,
		"expression":   b.Nodes(),
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if len(tagList) > 0 {
		payload["tags"] = tagList
	}
	util.WithResource("group", spec.Name).WithField("domain", domain).Info("configuring")
	api := fmt.Sprintf("%s/domains/%s/groups/%s", policyInfra, domain, util.IDFromName(spec.Name))
	return m.patch(ctx, api, payload)
}

// groupPath resolves "name" in domain, or "domain:name".
func (m *Manager) groupPath(ctx context.Context, resource, domain, ref string) (string, error) {
	d, name := util.SplitQualified(ref)
	if d == "" {
		d = domain
	}
	return m.dependency(ctx, resource, "group", d, name)
}

// searchCollection wraps a search query as a listable collection.
func searchCollection(kind, query string) resolver.Collection {
	return resolver.Collection{Kind: kind, API: "/api/v1/search?query=" + url.QueryEscape(query)}
}

// searchVM finds a VM in the inventory by display name, or nil.
func (m *Manager) searchVM(ctx context.Context, name string) (*record.Record, error) {
	c := searchCollection("virtual machine", fmt.Sprintf("(resource_type:VirtualMachine AND display_name:%s)", name))
	return m.res.FindByName(ctx, c, name, nil)
}

// vmInterfaces returns the external ids of a VM's network interfaces.
func (m *Manager) vmInterfaces(ctx context.Context, resource, vmName string) ([]string, error) {
	vm, err := m.searchVM(ctx, vmName)
	if err != nil {
		return nil, err
	}
	if vm == nil {
		return nil, util.NewDependencyError(resource, "virtual machine", vmName)
	}
	c := searchCollection("vif", fmt.Sprintf("(resource_type:VirtualNetworkInterface AND owner_vm_id:%s)", vm.String("external_id")))
	listing, err := m.res.List(ctx, c)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, listing.Len())
	for _, vif := range listing.Results {
		ids = append(ids, vif.String("external_id"))
	}
	return ids, nil
}

// GroupVMMembers lists the VMs that are effective members of a group at
// the manager's enforcement point.
func (m *Manager) GroupVMMembers(ctx context.Context, domain, name string) (*record.Listing, error) {
	group, err := m.mustPath(ctx, "group", domain, "", name)
	if err != nil {
		return nil, err
	}
	ep, err := m.mustPath(ctx, "enforce", "", "", m.EnforcementPoint)
	if err != nil {
		return nil, err
	}
	return m.res.List(ctx, resolver.Collection{
		Kind: "group member",
		API:  PolicyAPI + group + "/members/virtual-machines?enforcement_point_path=" + url.QueryEscape(ep),
	})
}

// ============================================================================
// Security policies and rules
// ============================================================================

// PolicySpec configures a security policy. Category defaults to
// Application.
type PolicySpec struct {
	Name        string
	Domain      string
	Description string
	Category    string
	Stateless   bool
	TCPStrict   bool
	Sequence    int
}

// ConfigurePolicy creates or updates a security policy.
func (m *Manager) ConfigurePolicy(ctx context.Context, spec PolicySpec) (*record.Record, error) {
	if spec.Category == "" {
		spec.Category = "Application"
	}
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "policy name is required")
	v.Add(util.ContainsString(PolicyCategories, spec.Category), fmt.Sprintf("invalid category %q", spec.Category))
	v.Add(spec.Sequence >= 0, "sequence number must not be negative")
	if err := v.Build(); err != nil {
		return nil, err
	}

	domain := m.domainOr(spec.Domain)
	payload := map[string]interface{}{
		"display_name":    spec.Name,
		"category":        spec.Category,
		"stateful":        !spec.Stateless,
		"tcp_strict":      spec.TCPStrict,
		"sequence_number": spec.Sequence,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	util.WithResource("policy", spec.Name).WithField("domain", domain).Info("configuring")
	api := fmt.Sprintf("%s/domains/%s/security-policies/%s", policyInfra, domain, util.IDFromName(spec.Name))
	return m.patch(ctx, api, payload)
}

// PositionSpec moves a policy within its category, or a rule within its
// policy. Anchor names the policy or rule the before/after operations are
// relative to.
type PositionSpec struct {
	Domain    string
	Policy    string
	Rule      string
	Operation string
	Anchor    string
}

func (s *PositionSpec) validate(kind string) error {
	v := &util.ValidationBuilder{}
	v.Add(s.Policy != "", "policy name is required")
	if kind == "rule" {
		v.Add(s.Rule != "", "rule name is required")
	}
	v.Add(util.ContainsString(positionOps, s.Operation), fmt.Sprintf("invalid operation %q", s.Operation))
	if s.Operation == InsertBefore || s.Operation == InsertAfter {
		v.Add(s.Anchor != "", fmt.Sprintf("%s requires an anchor", s.Operation))
	}
	return v.Build()
}

// PositionPolicy revises a policy's position.
func (m *Manager) PositionPolicy(ctx context.Context, spec PositionSpec) (*record.Record, error) {
	if err := spec.validate("policy"); err != nil {
		return nil, err
	}
	ref := Ref{Kind: "policy", Domain: spec.Domain, Name: spec.Policy}
	rec, err := m.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	anchor := ""
	if spec.Anchor != "" {
		ref.Name = spec.Anchor
		if anchor, err = m.Path(ctx, ref); err != nil {
			return nil, err
		}
	}
	return m.revise(ctx, rec, spec.Operation, anchor)
}

// PositionRule revises a rule's position within its policy.
func (m *Manager) PositionRule(ctx context.Context, spec PositionSpec) (*record.Record, error) {
	if err := spec.validate("rule"); err != nil {
		return nil, err
	}
	ref := Ref{Kind: "rule", Domain: spec.Domain, Parent: spec.Policy, Name: spec.Rule}
	rec, err := m.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	anchor := ""
	if spec.Anchor != "" {
		ref.Name = spec.Anchor
		if anchor, err = m.Path(ctx, ref); err != nil {
			return nil, err
		}
	}
	return m.revise(ctx, rec, spec.Operation, anchor)
}

func (m *Manager) revise(ctx context.Context, rec *record.Record, op, anchor string) (*record.Record, error) {
	if rec.Path() == "" {
		return nil, util.NewNotFoundError("path of", rec.DisplayName())
	}
	api := PolicyAPI + rec.Path() + "?action=revise&operation=" + op
	if anchor != "" {
		api += "&anchor_path=" + url.QueryEscape(anchor)
	}
	util.WithResource(rec.ResourceType(), rec.DisplayName()).WithField("operation", op).Info("revising position")
	return m.api.Post(ctx, api, client.WithBody(rec.Data()), client.WithCodes(http.StatusOK))
}

// PolicyStats returns the statistics of a policy, or of one of its rules
// when rule is set.
func (m *Manager) PolicyStats(ctx context.Context, domain, policy, rule string) (*record.Record, error) {
	path, err := m.Path(ctx, Ref{Kind: "policy", Domain: domain, Name: policy})
	if err != nil {
		return nil, err
	}
	api := PolicyAPI + path
	if rule != "" {
		r, err := m.Find(ctx, Ref{Kind: "rule", Domain: domain, Parent: policy, Name: rule})
		if err != nil {
			return nil, err
		}
		api += "/rules/" + r.ID()
	}
	return m.api.Get(ctx, api+"/statistics", client.WithCodes(http.StatusOK))
}

// RuleSpec configures a firewall rule. Sources and destinations are group
// names, "domain:name" for another domain, or ANY. Services are service
// names or ANY. Scope entries are "kind:domain:name" with kind one of
// group, segment, tier0 or tier1; the domain part is only used for
// groups. An empty list means ANY.
type RuleSpec struct {
	Policy               string
	Domain               string
	Name                 string
	Action               string
	Direction            string
	Protocol             string
	Sources              []string
	Destinations         []string
	SourcesExcluded      bool
	DestinationsExcluded bool
	Services             []string
	Scope                []string
	Sequence             int
	Disabled             bool
	Logged               bool
}

func (s *RuleSpec) validate() error {
	if s.Direction == "" {
		s.Direction = "IN_OUT"
	}
	if s.Protocol == "" {
		s.Protocol = "IPV4_IPV6"
	}
	s.Action = strings.ToUpper(s.Action)
	v := &util.ValidationBuilder{}
	v.Add(s.Policy != "", "policy name is required")
	v.Add(s.Name != "", "rule name is required")
	v.Add(util.ContainsString(RuleActions, s.Action), fmt.Sprintf("invalid action %q", s.Action))
	v.Add(util.ContainsString(RuleDirections, s.Direction), fmt.Sprintf("invalid direction %q", s.Direction))
	v.Add(util.ContainsString(RuleProtocols, s.Protocol), fmt.Sprintf("invalid IP protocol %q", s.Protocol))
	v.Add(s.Sequence >= 0, "sequence number must not be negative")
	for _, sc := range s.Scope {
		if strings.EqualFold(sc, Any) {
			v.Add(len(s.Scope) == 1, "scope ANY cannot be combined with other scopes")
			continue
		}
		parts := strings.SplitN(sc, ":", 3)
		if len(parts) != 3 || parts[2] == "" {
			v.AddErrorf("scope %q: expected kind:domain:name", sc)
			continue
		}
		v.Add(util.ContainsString([]string{"group", "segment", "tier0", "tier1"}, parts[0]),
			fmt.Sprintf("scope %q: unsupported kind %q", sc, parts[0]))
	}
	return v.Build()
}

// ConfigureRule creates or updates a rule in a security policy.
func (m *Manager) ConfigureRule(ctx context.Context, spec RuleSpec) (*record.Record, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	domain := m.domainOr(spec.Domain)
	resource := fmt.Sprintf("rule '%s'", spec.Name)

	policy, err := m.dependency(ctx, resource, "policy", domain, spec.Policy)
	if err != nil {
		return nil, err
	}
	sources, err := m.groupPaths(ctx, resource, domain, spec.Sources)
	if err != nil {
		return nil, err
	}
	destinations, err := m.groupPaths(ctx, resource, domain, spec.Destinations)
	if err != nil {
		return nil, err
	}
	services, err := m.servicePaths(ctx, resource, spec.Services)
	if err != nil {
		return nil, err
	}
	scope, err := m.scopePaths(ctx, resource, domain, spec.Scope)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"resource_type":         "Rule",
		"display_name":          spec.Name,
		"action":                spec.Action,
		"direction":             spec.Direction,
		"ip_protocol":           spec.Protocol,
		"sequence_number":       spec.Sequence,
		"disabled":              spec.Disabled,
		"logged":                spec.Logged,
		"source_groups":         sources,
		"destination_groups":    destinations,
		"sources_excluded":      spec.SourcesExcluded,
		"destinations_excluded": spec.DestinationsExcluded,
		"services":              services,
		"scope":                 scope,
	}
	util.WithResource("rule", spec.Name).WithField("policy", spec.Policy).Info("configuring")
	return m.patch(ctx, PolicyAPI+policy+"/rules/"+util.IDFromName(spec.Name), payload)
}

func isAny(refs []string) bool {
	return len(refs) == 0 || (len(refs) == 1 && strings.EqualFold(refs[0], Any))
}

func (m *Manager) groupPaths(ctx context.Context, resource, domain string, refs []string) ([]string, error) {
	if isAny(refs) {
		return []string{Any}, nil
	}
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		p, err := m.groupPath(ctx, resource, domain, ref)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (m *Manager) servicePaths(ctx context.Context, resource string, names []string) ([]string, error) {
	if isAny(names) {
		return []string{Any}, nil
	}
	c, _ := m.Collection(ctx, "service", "", "")
	listing, err := m.res.List(ctx, c)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p, _ := m.res.PathByName(ctx, c, name, listing)
		if p == "" {
			return nil, util.NewDependencyError(resource, "service", name)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (m *Manager) scopePaths(ctx context.Context, resource, domain string, refs []string) ([]string, error) {
	if isAny(refs) {
		return []string{Any}, nil
	}
	paths := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts := strings.SplitN(ref, ":", 3)
		kind, d, name := parts[0], parts[1], parts[2]
		if kind != "group" {
			d = ""
		} else if d == "" {
			d = domain
		}
		p, err := m.dependency(ctx, resource, kind, d, name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ============================================================================
// VM tags
// ============================================================================

// Tag update modes
const (
	TagReplace = "replace"
	TagMerge   = "merge"
	TagRemove  = "remove"
)

// TagVM updates the tags of a VM found by display name. Merge adds to the
// current tags, remove drops the given tags and replace sets them.
func (m *Manager) TagVM(ctx context.Context, vmName, mode string, specs []string) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(vmName != "", "vm name is required")
	v.Add(util.ContainsString([]string{TagReplace, TagMerge, TagRemove}, mode), fmt.Sprintf("invalid tag mode %q", mode))
	tagList, err := tags.Parse(specs)
	v.Merge(err)
	if err := v.Build(); err != nil {
		return nil, err
	}

	vm, err := m.Find(ctx, Ref{Kind: "vm", Name: vmName})
	if err != nil {
		return nil, err
	}
	switch mode {
	case TagMerge:
		tagList = tags.Merge(tags.FromRecord(vm), tagList)
	case TagRemove:
		tagList = tags.Remove(tags.FromRecord(vm), tagList)
	}

	payload := map[string]interface{}{
		"virtual_machine_id": vm.String("external_id"),
		"tags":               tagList,
	}
	api := fmt.Sprintf("%s/realized-state/enforcement-points/%s/virtual-machines?action=update_tags", policyInfra, m.EnforcementPoint)
	util.WithResource("vm", vmName).WithField("tags", tags.Specs(tagList)).Info("updating tags")
	return m.api.Post(ctx, api, client.WithBody(payload), client.WithCodes(http.StatusNoContent))
}
