package objects

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/resolver"
	"github.com/newtron-network/nsxctl/pkg/tags"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// Gateway failover and HA modes
const (
	FailoverPreemptive    = "PREEMPTIVE"
	FailoverNonPreemptive = "NON_PREEMPTIVE"

	HAActiveActive  = "ACTIVE_ACTIVE"
	HAActiveStandby = "ACTIVE_STANDBY"
)

var failoverModes = []string{FailoverPreemptive, FailoverNonPreemptive}

var haModes = []string{HAActiveActive, HAActiveStandby}

// RouteAdvertisements lists the tier1 route advertisement types.
var RouteAdvertisements = []string{
	"TIER1_CONNECTED",
	"TIER1_STATIC_ROUTES",
	"TIER1_NAT",
	"TIER1_LB_VIP",
	"TIER1_LB_SNAT",
	"TIER1_DNS_FORWARDER_IP",
	"TIER1_IPSEC_LOCAL_ENDPOINT",
}

// Tier0 interface types
var tier0InterfaceTypes = []string{"EXTERNAL", "SERVICE", "LOOPBACK"}

// ============================================================================
// Segments
// ============================================================================

// SegmentSpec configures a segment. DHCPRanges pair with Gateways by
// position; a gateway without a range gets no DHCP range.
type SegmentSpec struct {
	Name          string
	Description   string
	TransportZone string
	Connect       string // tier0 or tier1 name
	Gateways      []string
	DHCPRanges    []string
	VLANs         []string
	Tags          []string
}

func (s *SegmentSpec) validate() ([]string, []tags.Tag, error) {
	v := &util.ValidationBuilder{}
	v.Add(s.Name != "", "segment name is required")
	for _, gw := range s.Gateways {
		v.Merge(util.ValidateGateway(gw))
	}
	v.Add(len(s.DHCPRanges) <= len(s.Gateways), "more DHCP ranges than gateways")
	for _, r := range s.DHCPRanges {
		if !strings.Contains(r, "/") {
			v.Merge(util.ValidateIPRange(r))
		} else if !util.IsValidCIDR(r) {
			v.AddErrorf("invalid DHCP range %q", r)
		}
	}
	vlans, err := util.VLANSpecs(s.VLANs)
	v.Merge(err)
	tagList, err := tags.Parse(s.Tags)
	v.Merge(err)
	return vlans, tagList, v.Build()
}

// ConfigureSegment creates or updates a segment.
func (m *Manager) ConfigureSegment(ctx context.Context, spec SegmentSpec) (*record.Record, error) {
	vlans, tagList, err := spec.validate()
	if err != nil {
		return nil, err
	}
	resource := fmt.Sprintf("segment '%s'", spec.Name)

	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.TransportZone != "" {
		tz, err := m.dependency(ctx, resource, "tz", "", spec.TransportZone)
		if err != nil {
			return nil, err
		}
		payload["transport_zone_path"] = tz
	}
	if len(vlans) > 0 {
		payload["vlan_ids"] = vlans
	}
	if len(spec.Gateways) > 0 {
		subnets := make([]map[string]interface{}, 0, len(spec.Gateways))
		for i, gw := range spec.Gateways {
			sn := map[string]interface{}{"gateway_address": gw}
			if i < len(spec.DHCPRanges) {
				sn["dhcp_ranges"] = []string{spec.DHCPRanges[i]}
			}
			subnets = append(subnets, sn)
		}
		payload["subnets"] = subnets
	}
	if spec.Connect != "" {
		path, err := m.gatewayPath(ctx, spec.Connect)
		if err != nil {
			return nil, err
		}
		if path == "" {
			return nil, util.NewDependencyError(resource, "tier0 or tier1", spec.Connect)
		}
		payload["connectivity_path"] = path
	}
	if len(tagList) > 0 {
		payload["tags"] = tagList
	}

	util.WithResource("segment", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/segments/"+util.IDFromName(spec.Name), payload)
}

// gatewayPath looks a name up among tier0s, then tier1s.
func (m *Manager) gatewayPath(ctx context.Context, name string) (string, error) {
	t0, _ := m.Collection(ctx, "tier0", "", "")
	t1, _ := m.Collection(ctx, "tier1", "", "")
	path, _, err := m.res.PathByTypeAndName(ctx, name, t0, t1)
	return path, err
}

// SegmentPortSpec configures a port on a segment, optionally attached to
// a VIF.
type SegmentPortSpec struct {
	Segment string
	Name    string
	VIF     string
	Tags    []string
}

// ConfigureSegmentPort creates or updates a segment port.
func (m *Manager) ConfigureSegmentPort(ctx context.Context, spec SegmentPortSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Segment != "", "segment is required")
	v.Add(spec.Name != "", "port name is required")
	tagList, err := tags.Parse(spec.Tags)
	v.Merge(err)
	if err := v.Build(); err != nil {
		return nil, err
	}

	seg, err := m.dependency(ctx, fmt.Sprintf("port '%s'", spec.Name), "segment", "", spec.Segment)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.VIF != "" {
		payload["attachment"] = map[string]string{"id": spec.VIF}
	}
	if len(tagList) > 0 {
		payload["tags"] = tagList
	}
	util.WithResource("port", spec.Name).Info("configuring")
	return m.patch(ctx, PolicyAPI+seg+"/ports/"+util.IDFromName(spec.Name), payload)
}

// ============================================================================
// IP pools
// ============================================================================

// IPPoolSpec configures an IP pool with an optional static subnet.
type IPPoolSpec struct {
	Name        string
	Description string
	Subnet      string // subnet name, defaults to the pool name
	CIDR        string
	Ranges      []string
	Gateway     string
	Tags        []string
}

// ConfigureIPPool creates or updates an IP pool, then its static subnet
// when a CIDR is given.
func (m *Manager) ConfigureIPPool(ctx context.Context, spec IPPoolSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "ip pool name is required")
	if spec.CIDR != "" {
		v.Add(util.IsValidCIDR(spec.CIDR), fmt.Sprintf("invalid subnet CIDR %q", spec.CIDR))
	} else {
		v.Add(len(spec.Ranges) == 0 && spec.Gateway == "", "ranges and gateway need a subnet CIDR")
	}
	for _, r := range spec.Ranges {
		v.Merge(util.ValidateIPRange(r))
	}
	if spec.Gateway != "" {
		v.Add(util.IsValidIP(spec.Gateway), fmt.Sprintf("invalid gateway %q", spec.Gateway))
	}
	tagList, err := tags.Parse(spec.Tags)
	v.Merge(err)
	if err := v.Build(); err != nil {
		return nil, err
	}

	api := policyInfra + "/ip-pools/" + util.IDFromName(spec.Name)
	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if len(tagList) > 0 {
		payload["tags"] = tagList
	}
	util.WithResource("ippool", spec.Name).Info("configuring")
	rec, err := m.patch(ctx, api, payload)
	if err != nil || spec.CIDR == "" {
		return rec, err
	}

	subnet := spec.Subnet
	if subnet == "" {
		subnet = spec.Name
	}
	ranges := make([]map[string]string, 0, len(spec.Ranges))
	for _, r := range spec.Ranges {
		parts := strings.SplitN(r, "-", 2)
		ranges = append(ranges, map[string]string{
			"start": strings.TrimSpace(parts[0]),
			"end":   strings.TrimSpace(parts[1]),
		})
	}
	sn := map[string]interface{}{
		"resource_type":     "IpAddressPoolStaticSubnet",
		"display_name":      subnet,
		"cidr":              spec.CIDR,
		"allocation_ranges": ranges,
	}
	if spec.Gateway != "" {
		sn["gateway_ip"] = spec.Gateway
	}
	return m.patch(ctx, api+"/ip-subnets/"+util.IDFromName(subnet), sn)
}

// ============================================================================
// Gateways
// ============================================================================

// Tier0Spec configures a tier0 gateway.
type Tier0Spec struct {
	Name          string
	Description   string
	FailoverMode  string
	HAMode        string
	TransitSubnet string
	DHCPRelay     string
}

// ConfigureTier0 creates or updates a tier0 gateway.
func (m *Manager) ConfigureTier0(ctx context.Context, spec Tier0Spec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "tier0 name is required")
	if spec.FailoverMode != "" {
		v.Add(util.ContainsString(failoverModes, spec.FailoverMode), fmt.Sprintf("invalid failover mode %q", spec.FailoverMode))
	}
	if spec.HAMode != "" {
		v.Add(util.ContainsString(haModes, spec.HAMode), fmt.Sprintf("invalid HA mode %q", spec.HAMode))
	}
	if spec.TransitSubnet != "" {
		v.Add(util.IsValidCIDR(spec.TransitSubnet), fmt.Sprintf("invalid transit subnet %q", spec.TransitSubnet))
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.FailoverMode != "" {
		payload["failover_mode"] = spec.FailoverMode
	}
	if spec.HAMode != "" {
		payload["ha_mode"] = spec.HAMode
	}
	if spec.TransitSubnet != "" {
		payload["transit_subnets"] = []string{spec.TransitSubnet}
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.DHCPRelay != "" {
		relay, err := m.dependency(ctx, fmt.Sprintf("tier0 '%s'", spec.Name), "dhcprelay", "", spec.DHCPRelay)
		if err != nil {
			return nil, err
		}
		payload["dhcp_config_paths"] = []string{relay}
	}
	util.WithResource("tier0", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/tier-0s/"+util.IDFromName(spec.Name), payload)
}

// Tier1Spec configures a tier1 gateway. FailoverMode defaults to
// NON_PREEMPTIVE.
type Tier1Spec struct {
	Name           string
	Description    string
	FailoverMode   string
	Tier0          string
	DHCPRelay      string
	Advertisements []string
}

// ConfigureTier1 creates or updates a tier1 gateway.
func (m *Manager) ConfigureTier1(ctx context.Context, spec Tier1Spec) (*record.Record, error) {
	if spec.FailoverMode == "" {
		spec.FailoverMode = FailoverNonPreemptive
	}
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "tier1 name is required")
	v.Add(util.ContainsString(failoverModes, spec.FailoverMode), fmt.Sprintf("invalid failover mode %q", spec.FailoverMode))
	for _, a := range spec.Advertisements {
		v.Add(util.ContainsString(RouteAdvertisements, a), fmt.Sprintf("invalid route advertisement %q", a))
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	resource := fmt.Sprintf("tier1 '%s'", spec.Name)
	payload := map[string]interface{}{
		"display_name":  spec.Name,
		"failover_mode": spec.FailoverMode,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.Tier0 != "" {
		t0, err := m.dependency(ctx, resource, "tier0", "", spec.Tier0)
		if err != nil {
			return nil, err
		}
		payload["tier0_path"] = t0
	}
	if len(spec.Advertisements) > 0 {
		payload["route_advertisement_types"] = spec.Advertisements
	}
	if spec.DHCPRelay != "" {
		relay, err := m.dependency(ctx, resource, "dhcprelay", "", spec.DHCPRelay)
		if err != nil {
			return nil, err
		}
		payload["dhcp_config_paths"] = []string{relay}
	}
	util.WithResource("tier1", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/tier-1s/"+util.IDFromName(spec.Name), payload)
}

// EdgeClusterSpec attaches a gateway's locale service to an edge
// cluster. Cluster is matched as a path when it starts with "/", then as
// an id, then as a name. Edges name preferred edge nodes in the cluster.
type EdgeClusterSpec struct {
	Gateway string
	Cluster string
	Edges   []string
}

// SetTier0EdgeCluster sets the edge cluster of a tier0 gateway.
func (m *Manager) SetTier0EdgeCluster(ctx context.Context, spec EdgeClusterSpec) (*record.Record, error) {
	return m.setEdgeCluster(ctx, "tier0", spec)
}

// SetTier1EdgeCluster sets the edge cluster of a tier1 gateway.
func (m *Manager) SetTier1EdgeCluster(ctx context.Context, spec EdgeClusterSpec) (*record.Record, error) {
	return m.setEdgeCluster(ctx, "tier1", spec)
}

func (m *Manager) setEdgeCluster(ctx context.Context, kind string, spec EdgeClusterSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Gateway != "", kind+" name is required")
	v.Add(spec.Cluster != "", "edge cluster is required")
	if err := v.Build(); err != nil {
		return nil, err
	}
	resource := fmt.Sprintf("%s '%s'", kind, spec.Gateway)

	gw, err := m.dependency(ctx, resource, kind, "", spec.Gateway)
	if err != nil {
		return nil, err
	}
	cluster, err := m.findEdgeCluster(ctx, spec.Cluster)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, util.NewDependencyError(resource, "edge cluster", spec.Cluster)
	}

	payload := map[string]interface{}{"edge_cluster_path": cluster.Path()}
	if len(spec.Edges) > 0 {
		edges, err := m.res.List(ctx, resolver.Collection{Kind: "edge node", API: PolicyAPI + cluster.Path() + "/edge-nodes"})
		if err != nil {
			return nil, err
		}
		var preferred []string
		for _, name := range spec.Edges {
			path, _ := m.res.PathByName(ctx, resolver.Collection{}, name, edges)
			if path == "" {
				return nil, util.NewDependencyError(resource, "edge node", name)
			}
			preferred = append(preferred, path)
		}
		payload["preferred_edge_paths"] = preferred
	}
	util.WithResource(kind, spec.Gateway).WithField("cluster", cluster.Path()).Info("setting edge cluster")
	return m.patch(ctx, PolicyAPI+gw+"/locale-services/"+m.Locale, payload)
}

func (m *Manager) findEdgeCluster(ctx context.Context, ref string) (*record.Record, error) {
	c, _ := m.Collection(ctx, "edgecluster", "", "")
	listing, err := m.res.List(ctx, c)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(ref, "/") {
		for _, rec := range listing.Results {
			if rec.Path() == ref {
				return rec, nil
			}
		}
		return nil, nil
	}
	if rec, _ := m.res.FindByID(ctx, c, ref, listing); rec != nil {
		return rec, nil
	}
	return m.res.FindByName(ctx, c, ref, listing)
}

// GatewayInterfaces lists the interfaces of a gateway's locale service.
func (m *Manager) GatewayInterfaces(ctx context.Context, kind, gateway string) (*record.Listing, error) {
	gw, err := m.mustPath(ctx, kind, "", "", gateway)
	if err != nil {
		return nil, err
	}
	return m.res.List(ctx, resolver.Collection{
		Kind: kind + " interface",
		API:  PolicyAPI + gw + "/locale-services/" + m.Locale + "/interfaces",
	})
}

// InterfaceSpec configures a gateway interface on a segment. Addresses
// are in ip/prefix form. Edge, Type and MTU apply to tier0 interfaces.
type InterfaceSpec struct {
	Gateway   string
	Name      string
	Segment   string
	Addresses []string
	Edge      string
	Type      string
	MTU       int
}

func (s *InterfaceSpec) subnets(v *util.ValidationBuilder) []map[string]interface{} {
	var out []map[string]interface{}
	for _, a := range s.Addresses {
		ip, plen, err := util.ParseIPWithMask(a)
		if err != nil {
			v.AddError(err.Error())
			continue
		}
		out = append(out, map[string]interface{}{
			"ip_addresses": []string{ip.String()},
			"prefix_len":   plen,
		})
	}
	return out
}

// ConfigureTier1Interface creates or updates a tier1 service interface.
func (m *Manager) ConfigureTier1Interface(ctx context.Context, spec InterfaceSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Gateway != "", "tier1 name is required")
	v.Add(spec.Name != "", "interface name is required")
	v.Add(spec.Segment != "", "segment is required")
	subnets := spec.subnets(v)
	if err := v.Build(); err != nil {
		return nil, err
	}

	resource := fmt.Sprintf("tier1 interface '%s'", spec.Name)
	gw, err := m.dependency(ctx, resource, "tier1", "", spec.Gateway)
	if err != nil {
		return nil, err
	}
	seg, err := m.dependency(ctx, resource, "segment", "", spec.Segment)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"display_name": spec.Name,
		"segment_path": seg,
		"subnets":      subnets,
	}
	util.WithResource("tier1-interface", spec.Name).Info("configuring")
	return m.patch(ctx, PolicyAPI+gw+"/locale-services/"+m.Locale+"/interfaces/"+util.IDFromName(spec.Name), payload)
}

// ConfigureTier0Interface creates or updates a tier0 interface. Type
// defaults to EXTERNAL.
func (m *Manager) ConfigureTier0Interface(ctx context.Context, spec InterfaceSpec) (*record.Record, error) {
	if spec.Type == "" {
		spec.Type = "EXTERNAL"
	}
	v := &util.ValidationBuilder{}
	v.Add(spec.Gateway != "", "tier0 name is required")
	v.Add(spec.Name != "", "interface name is required")
	v.Add(util.ContainsString(tier0InterfaceTypes, spec.Type), fmt.Sprintf("invalid interface type %q", spec.Type))
	v.Add(spec.Type == "LOOPBACK" || spec.Segment != "", "segment is required")
	v.Add(spec.MTU == 0 || (spec.MTU >= 64 && spec.MTU <= 9000), fmt.Sprintf("invalid MTU %d", spec.MTU))
	subnets := spec.subnets(v)
	if err := v.Build(); err != nil {
		return nil, err
	}

	resource := fmt.Sprintf("tier0 interface '%s'", spec.Name)
	gw, err := m.dependency(ctx, resource, "tier0", "", spec.Gateway)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"resource_type": "Tier0Interface",
		"display_name":  spec.Name,
		"type":          spec.Type,
		"subnets":       subnets,
	}
	if spec.Segment != "" {
		seg, err := m.dependency(ctx, resource, "segment", "", spec.Segment)
		if err != nil {
			return nil, err
		}
		payload["segment_path"] = seg
	}
	if spec.Edge != "" {
		edges, err := m.List(ctx, Ref{Kind: "edge"})
		if err != nil {
			return nil, err
		}
		edge, _ := m.res.PathByName(ctx, resolver.Collection{}, spec.Edge, edges)
		if edge == "" {
			return nil, util.NewDependencyError(resource, "edge node", spec.Edge)
		}
		payload["edge_path"] = edge
	}
	if spec.MTU > 0 {
		payload["mtu"] = spec.MTU
	}
	util.WithResource("tier0-interface", spec.Name).Info("configuring")
	return m.patch(ctx, PolicyAPI+gw+"/locale-services/"+m.Locale+"/interfaces/"+util.IDFromName(spec.Name), payload)
}

// ============================================================================
// Prefix lists and DHCP relays
// ============================================================================

// PrefixListSpec configures a tier0 prefix list. Each prefix is
// "CIDR,GE,LE,ACTION" where CIDR may be ANY, GE and LE may be empty and
// ACTION is PERMIT or DENY.
type PrefixListSpec struct {
	Tier0       string
	Name        string
	Description string
	Prefixes    []string
}

// ParsePrefix parses one "CIDR,GE,LE,ACTION" entry.
func ParsePrefix(entry string) (map[string]interface{}, error) {
	parts := strings.Split(entry, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("prefix %q: expected CIDR,GE,LE,ACTION", entry)
	}
	network := strings.TrimSpace(parts[0])
	maxLen := 32
	if network != "ANY" {
		ip, _, err := util.ParseIPWithMask(network)
		if err != nil {
			return nil, fmt.Errorf("prefix %q: invalid network %q", entry, network)
		}
		if ip.To4() == nil {
			maxLen = 128
		}
	}
	action := strings.ToUpper(strings.TrimSpace(parts[3]))
	if action != "PERMIT" && action != "DENY" {
		return nil, fmt.Errorf("prefix %q: action must be PERMIT or DENY", entry)
	}
	p := map[string]interface{}{"network": network, "action": action}
	for i, key := range []string{"ge", "le"} {
		s := strings.TrimSpace(parts[i+1])
		if s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 || n > maxLen {
			return nil, fmt.Errorf("prefix %q: invalid %s %q", entry, key, s)
		}
		p[key] = n
	}
	return p, nil
}

// ConfigurePrefixList creates or updates a prefix list on a tier0.
func (m *Manager) ConfigurePrefixList(ctx context.Context, spec PrefixListSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Tier0 != "", "tier0 name is required")
	v.Add(spec.Name != "", "prefix list name is required")
	v.Add(len(spec.Prefixes) > 0, "at least one prefix is required")
	prefixes := make([]map[string]interface{}, 0, len(spec.Prefixes))
	for _, entry := range spec.Prefixes {
		p, err := ParsePrefix(entry)
		if err != nil {
			v.AddError(err.Error())
			continue
		}
		prefixes = append(prefixes, p)
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	t0, err := m.dependency(ctx, fmt.Sprintf("prefix list '%s'", spec.Name), "tier0", "", spec.Tier0)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"display_name": spec.Name,
		"prefixes":     prefixes,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	util.WithResource("prefixlist", spec.Name).Info("configuring")
	return m.patch(ctx, PolicyAPI+t0+"/prefix-lists/"+util.IDFromName(spec.Name), payload)
}

// DHCPRelaySpec configures a DHCP relay.
type DHCPRelaySpec struct {
	Name    string
	Servers []string
}

// ConfigureDHCPRelay creates or updates a DHCP relay config.
func (m *Manager) ConfigureDHCPRelay(ctx context.Context, spec DHCPRelaySpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "dhcp relay name is required")
	v.Add(len(spec.Servers) > 0, "at least one server address is required")
	for _, s := range spec.Servers {
		v.Add(util.IsValidIP(s), fmt.Sprintf("invalid server address %q", s))
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"display_name":     spec.Name,
		"server_addresses": spec.Servers,
	}
	util.WithResource("dhcprelay", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/dhcp-relay-configs/"+util.IDFromName(spec.Name), payload)
}
