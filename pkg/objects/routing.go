package objects

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/newtron-network/nsxctl/pkg/client"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/resolver"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// Tier0Redistributions lists the route redistribution types of a tier0.
var Tier0Redistributions = []string{
	"TIER0_STATIC",
	"TIER0_CONNECTED",
	"TIER0_EXTERNAL_INTERFACE",
	"TIER0_SEGMENT",
	"TIER0_ROUTER_LINK",
	"TIER0_SERVICE_INTERFACE",
	"TIER0_DNS_FORWARDER_IP",
	"TIER0_IPSEC_LOCAL_IP",
	"TIER0_NAT",
	"TIER1_NAT",
	"TIER1_STATIC",
	"TIER1_LB_VIP",
	"TIER1_LB_SNAT",
	"TIER1_DNS_FORWARDER_IP",
	"TIER1_CONNECTED",
}

var (
	gracefulRestartModes = []string{"DISABLE", "GR_AND_HELPER", "HELPER_ONLY"}
	wellKnownCommunities = []string{"NO_EXPORT", "NO_ADVERTISE", "NO_EXPORT_SUBCONFED"}
)

// validASN accepts asplain ("65001") and asdot ("1.10") numbers.
func validASN(as string) bool {
	parts := strings.Split(as, ".")
	if len(parts) > 2 {
		return false
	}
	bits := 32
	if len(parts) == 2 {
		bits = 16
	}
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, bits)
		if err != nil {
			return false
		}
		if len(parts) == 1 && n == 0 {
			return false
		}
	}
	return true
}

// bgpPath returns the BGP config path of a tier0's locale services.
func (m *Manager) bgpPath(ctx context.Context, resource, tier0 string) (string, error) {
	t0, err := m.dependency(ctx, resource, "tier0", "", tier0)
	if err != nil {
		return "", err
	}
	return PolicyAPI + t0 + "/locale-services/" + m.Locale + "/bgp", nil
}

// ============================================================================
// BGP
// ============================================================================

// Tier0BGP returns the BGP configuration of a tier0. A tier0 whose locale
// services carry no BGP config reports a *util.NotFoundError.
func (m *Manager) Tier0BGP(ctx context.Context, tier0 string) (*record.Record, error) {
	path, err := m.Path(ctx, Ref{Kind: "tier0", Name: tier0})
	if err != nil {
		return nil, err
	}
	rec, err := m.api.Get(ctx, PolicyAPI+path+"/locale-services/"+m.Locale+"/bgp", client.WithCodes(http.StatusOK))
	if client.IsStatus(err, http.StatusNotFound) {
		return nil, util.NewNotFoundError("bgp config", tier0)
	}
	return rec, err
}

// BGPSpec configures the BGP process of a tier0. Unset toggles are left
// as they are on the manager. Aggregations are "CIDR" or
// "CIDR:true|false" where the suffix sets summary_only.
type BGPSpec struct {
	Tier0           string
	LocalAS         string
	Description     string
	MultipathRelax  *bool
	InterSRIBGP     *bool
	ECMP            *bool
	GracefulRestart *bool
	Aggregations    []string
}

// ParseAggregation parses one "CIDR[:summary]" route aggregation.
func ParseAggregation(entry string) (map[string]interface{}, error) {
	prefix := entry
	agg := map[string]interface{}{}
	if i := strings.LastIndex(entry, ":"); i >= 0 {
		switch strings.ToLower(entry[i+1:]) {
		case "true":
			prefix, agg["summary_only"] = entry[:i], true
		case "false":
			prefix, agg["summary_only"] = entry[:i], false
		}
	}
	if _, _, err := net.ParseCIDR(prefix); err != nil {
		return nil, fmt.Errorf("route aggregation %q: prefix must be in CIDR form", entry)
	}
	agg["prefix"] = prefix
	return agg, nil
}

// ConfigureTier0BGP updates the BGP process of a tier0.
func (m *Manager) ConfigureTier0BGP(ctx context.Context, spec BGPSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Tier0 != "", "tier0 name is required")
	v.Add(validASN(spec.LocalAS), fmt.Sprintf("invalid local AS %q", spec.LocalAS))
	aggs := make([]map[string]interface{}, 0, len(spec.Aggregations))
	for _, entry := range spec.Aggregations {
		a, err := ParseAggregation(entry)
		if err != nil {
			v.AddError(err.Error())
			continue
		}
		aggs = append(aggs, a)
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	api, err := m.bgpPath(ctx, fmt.Sprintf("bgp of tier0 '%s'", spec.Tier0), spec.Tier0)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"resource_type": "BgpRoutingConfig",
		"local_as_num":  spec.LocalAS,
	}
	for key, val := range map[string]*bool{
		"multipath_relax":  spec.MultipathRelax,
		"inter_sr_ibgp":    spec.InterSRIBGP,
		"ecmp":             spec.ECMP,
		"graceful_restart": spec.GracefulRestart,
	} {
		if val != nil {
			payload[key] = *val
		}
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if len(aggs) > 0 {
		payload["route_aggregations"] = aggs
	}
	util.WithResource("bgp", spec.Tier0).Info("configuring")
	return m.patch(ctx, api, payload)
}

// Tier0BGPNeighbors lists the BGP neighbors of a tier0.
func (m *Manager) Tier0BGPNeighbors(ctx context.Context, tier0 string) (*record.Listing, error) {
	api, err := m.bgpPath(ctx, "bgp neighbors", tier0)
	if err != nil {
		return nil, err
	}
	return m.res.List(ctx, resolver.Collection{Kind: "bgp neighbor", API: api + "/neighbors"})
}

// BGPNeighborSpec configures a BGP neighbor of a tier0. Route filters name
// prefix lists and route maps of the same tier0; they apply to the IPv4
// address family unless IPv6 is set.
type BGPNeighborSpec struct {
	Tier0               string
	Name                string
	Description         string
	Address             string
	RemoteAS            string
	HoldDownTime        int
	KeepAliveTime       int
	Password            string
	BFD                 *bool
	BFDInterval         int
	BFDMultiple         int
	SourceAddresses     []string
	GracefulRestartMode string
	IPv6                bool
	InPrefixLists       []string
	InRouteMaps         []string
	OutPrefixLists      []string
	OutRouteMaps        []string
}

func (s *BGPNeighborSpec) validate() error {
	v := &util.ValidationBuilder{}
	v.Add(s.Tier0 != "", "tier0 name is required")
	v.Add(s.Name != "", "neighbor name is required")
	v.Add(util.IsValidIP(s.Address), fmt.Sprintf("invalid neighbor address %q", s.Address))
	v.Add(validASN(s.RemoteAS), fmt.Sprintf("invalid remote AS %q", s.RemoteAS))
	v.Add(s.HoldDownTime >= 0 && s.HoldDownTime <= 65535, fmt.Sprintf("invalid hold down time %d", s.HoldDownTime))
	v.Add(s.KeepAliveTime >= 0 && s.KeepAliveTime <= 65535, fmt.Sprintf("invalid keep alive time %d", s.KeepAliveTime))
	v.Add(s.BFDInterval >= 0, "bfd interval must not be negative")
	v.Add(s.BFDMultiple >= 0, "bfd multiple must not be negative")
	for _, a := range s.SourceAddresses {
		v.Add(util.IsValidIP(a), fmt.Sprintf("invalid source address %q", a))
	}
	if s.GracefulRestartMode != "" {
		v.Add(util.ContainsString(gracefulRestartModes, s.GracefulRestartMode),
			fmt.Sprintf("invalid graceful restart mode %q", s.GracefulRestartMode))
	}
	return v.Build()
}

// childPath resolves a resource of a tier0, such as a prefix list, to its
// path, reporting a miss as a dependency of resource.
func (m *Manager) childPath(ctx context.Context, resource, kind, tier0, name string) (string, error) {
	c, err := m.Collection(ctx, kind, "", tier0)
	if err != nil {
		return "", err
	}
	p, err := m.res.PathByName(ctx, c, name, nil)
	if err != nil {
		return "", err
	}
	if p == "" {
		k, _ := LookupKind(kind)
		return "", util.NewDependencyError(resource, k.Label, name)
	}
	return p, nil
}

// routeFilters resolves prefix list and route map names of a tier0 to
// their paths, prefix lists first.
func (m *Manager) routeFilters(ctx context.Context, resource, tier0 string, prefixLists, routeMaps []string) ([]string, error) {
	var paths []string
	for _, ref := range []struct {
		kind  string
		names []string
	}{
		{"prefixlist", prefixLists},
		{"routemap", routeMaps},
	} {
		for _, name := range ref.names {
			p, err := m.childPath(ctx, resource, ref.kind, tier0, name)
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// ConfigureBGPNeighbor creates or updates a BGP neighbor of a tier0.
func (m *Manager) ConfigureBGPNeighbor(ctx context.Context, spec BGPNeighborSpec) (*record.Record, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	resource := fmt.Sprintf("bgp neighbor '%s'", spec.Name)
	api, err := m.bgpPath(ctx, resource, spec.Tier0)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"resource_type":    "BgpNeighborConfig",
		"display_name":     spec.Name,
		"neighbor_address": spec.Address,
		"remote_as_num":    spec.RemoteAS,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.HoldDownTime > 0 {
		payload["hold_down_time"] = spec.HoldDownTime
	}
	if spec.KeepAliveTime > 0 {
		payload["keep_alive_time"] = spec.KeepAliveTime
	}
	if spec.Password != "" {
		payload["password"] = spec.Password
	}
	if spec.BFD != nil || spec.BFDInterval > 0 || spec.BFDMultiple > 0 {
		bfd := map[string]interface{}{}
		if spec.BFD != nil {
			bfd["enabled"] = *spec.BFD
		}
		if spec.BFDInterval > 0 {
			bfd["interval"] = spec.BFDInterval
		}
		if spec.BFDMultiple > 0 {
			bfd["multiple"] = spec.BFDMultiple
		}
		payload["bfd"] = bfd
	}
	if len(spec.SourceAddresses) > 0 {
		payload["source_addresses"] = spec.SourceAddresses
	}
	if spec.GracefulRestartMode != "" {
		payload["graceful_restart_mode"] = spec.GracefulRestartMode
	}

	filter := map[string]interface{}{"address_family": "IPV4"}
	if spec.IPv6 {
		filter["address_family"] = "IPV6"
	}
	in, err := m.routeFilters(ctx, resource, spec.Tier0, spec.InPrefixLists, spec.InRouteMaps)
	if err != nil {
		return nil, err
	}
	if len(in) > 0 {
		filter["in_route_filters"] = in
	}
	out, err := m.routeFilters(ctx, resource, spec.Tier0, spec.OutPrefixLists, spec.OutRouteMaps)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 {
		filter["out_route_filters"] = out
	}
	payload["route_filtering"] = []map[string]interface{}{filter}

	util.WithResource("bgp-neighbor", spec.Name).WithField("tier0", spec.Tier0).Info("configuring")
	return m.patch(ctx, api+"/neighbors/"+util.IDFromName(spec.Name), payload)
}

// DeleteBGPNeighbor removes a BGP neighbor from a tier0.
func (m *Manager) DeleteBGPNeighbor(ctx context.Context, tier0, name string) error {
	v := &util.ValidationBuilder{}
	v.Add(tier0 != "", "tier0 name is required")
	v.Add(name != "", "neighbor name is required")
	if err := v.Build(); err != nil {
		return err
	}
	api, err := m.bgpPath(ctx, fmt.Sprintf("bgp neighbor '%s'", name), tier0)
	if err != nil {
		return err
	}
	util.WithResource("bgp-neighbor", name).WithField("tier0", tier0).Info("deleting")
	_, err = m.api.Delete(ctx, api+"/neighbors/"+util.IDFromName(name), client.WithCodes(http.StatusOK))
	return err
}

// SetTier0Redistribution replaces the route redistribution types of a
// tier0's locale services.
func (m *Manager) SetTier0Redistribution(ctx context.Context, tier0 string, types []string) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(tier0 != "", "tier0 name is required")
	v.Add(len(types) > 0, "at least one redistribution type is required")
	normalized := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToUpper(strings.TrimSpace(t))
		v.Add(util.ContainsString(Tier0Redistributions, t), fmt.Sprintf("invalid redistribution type %q", t))
		normalized = append(normalized, t)
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	t0, err := m.dependency(ctx, "route redistribution", "tier0", "", tier0)
	if err != nil {
		return nil, err
	}
	util.WithResource("tier0", tier0).WithField("types", normalized).Info("setting route redistribution")
	return m.patch(ctx, PolicyAPI+t0+"/locale-services/"+m.Locale,
		map[string]interface{}{"route_redistribution_types": normalized})
}

// ============================================================================
// Community lists and route maps
// ============================================================================

// ParseCommunity normalizes a well-known community or checks an "x:y" or
// "x:y:z" (large) community value.
func ParseCommunity(c string) (string, error) {
	c = strings.TrimSpace(c)
	if util.ContainsString(wellKnownCommunities, strings.ToUpper(c)) {
		return strings.ToUpper(c), nil
	}
	parts := strings.Split(c, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return "", fmt.Errorf("invalid community %q", c)
	}
	bits := 16
	if len(parts) == 3 {
		bits = 32
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, bits); err != nil {
			return "", fmt.Errorf("invalid community %q", c)
		}
	}
	return c, nil
}

// CommunityListSpec configures a BGP community list on a tier0.
type CommunityListSpec struct {
	Tier0       string
	Name        string
	Description string
	Communities []string
}

// ConfigureCommunityList creates or updates a community list on a tier0.
func (m *Manager) ConfigureCommunityList(ctx context.Context, spec CommunityListSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Tier0 != "", "tier0 name is required")
	v.Add(spec.Name != "", "community list name is required")
	v.Add(len(spec.Communities) > 0, "at least one community is required")
	communities := make([]string, 0, len(spec.Communities))
	for _, c := range spec.Communities {
		parsed, err := ParseCommunity(c)
		if err != nil {
			v.AddError(err.Error())
			continue
		}
		communities = append(communities, parsed)
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	t0, err := m.dependency(ctx, fmt.Sprintf("community list '%s'", spec.Name), "tier0", "", spec.Tier0)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"display_name": spec.Name,
		"communities":  communities,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	util.WithResource("community", spec.Name).Info("configuring")
	return m.patch(ctx, PolicyAPI+t0+"/community-lists/"+util.IDFromName(spec.Name), payload)
}

// RouteMapSpec configures a route map on a tier0. Each entry is
// "ACTION|prefix|list;list" or "ACTION|community|list;list" and matches
// the named prefix lists or community lists of the same tier0.
type RouteMapSpec struct {
	Tier0       string
	Name        string
	Description string
	Entries     []string
}

type routeMapEntry struct {
	action string
	kind   string
	lists  []string
}

// parseRouteMapEntry parses one "ACTION|prefix|a;b" entry.
func parseRouteMapEntry(entry string) (routeMapEntry, error) {
	f := strings.Split(entry, "|")
	if len(f) != 3 {
		return routeMapEntry{}, fmt.Errorf("route map entry %q: expected ACTION|prefix|lists or ACTION|community|lists", entry)
	}
	e := routeMapEntry{action: strings.ToUpper(strings.TrimSpace(f[0]))}
	if e.action != "PERMIT" && e.action != "DENY" {
		return e, fmt.Errorf("route map entry %q: action must be PERMIT or DENY", entry)
	}
	switch strings.ToLower(strings.TrimSpace(f[1])) {
	case "prefix":
		e.kind = "prefixlist"
	case "community":
		e.kind = "community"
	default:
		return e, fmt.Errorf("route map entry %q: match must be prefix or community", entry)
	}
	for _, l := range strings.Split(f[2], ";") {
		if l = strings.TrimSpace(l); l != "" {
			e.lists = append(e.lists, l)
		}
	}
	if len(e.lists) == 0 {
		return e, fmt.Errorf("route map entry %q: no lists to match", entry)
	}
	return e, nil
}

// ConfigureRouteMap creates or updates a route map on a tier0.
func (m *Manager) ConfigureRouteMap(ctx context.Context, spec RouteMapSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Tier0 != "", "tier0 name is required")
	v.Add(spec.Name != "", "route map name is required")
	v.Add(len(spec.Entries) > 0, "at least one entry is required")
	parsed := make([]routeMapEntry, 0, len(spec.Entries))
	for _, entry := range spec.Entries {
		e, err := parseRouteMapEntry(entry)
		if err != nil {
			v.AddError(err.Error())
			continue
		}
		parsed = append(parsed, e)
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	resource := fmt.Sprintf("route map '%s'", spec.Name)
	t0, err := m.dependency(ctx, resource, "tier0", "", spec.Tier0)
	if err != nil {
		return nil, err
	}
	entries := make([]map[string]interface{}, 0, len(parsed))
	for _, e := range parsed {
		paths := make([]string, 0, len(e.lists))
		for _, name := range e.lists {
			p, err := m.childPath(ctx, resource, e.kind, spec.Tier0, name)
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
		out := map[string]interface{}{"action": e.action}
		if e.kind == "prefixlist" {
			out["prefix_list_matches"] = paths
		} else {
			matches := make([]map[string]string, 0, len(paths))
			for _, p := range paths {
				matches = append(matches, map[string]string{"criteria": p, "match_operator": "MATCH_ANY"})
			}
			out["community_list_matches"] = matches
		}
		entries = append(entries, out)
	}

	payload := map[string]interface{}{
		"display_name": spec.Name,
		"entries":      entries,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	util.WithResource("routemap", spec.Name).Info("configuring")
	return m.patch(ctx, PolicyAPI+t0+"/route-maps/"+util.IDFromName(spec.Name), payload)
}
