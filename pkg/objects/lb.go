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
	"github.com/newtron-network/nsxctl/pkg/util"
)

var (
	lbSizes     = []string{"SMALL", "MEDIUM", "LARGE", "XLARGE"}
	lbLogLevels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL", "ALERT", "EMERGENCY"}

	// LBAlgorithms lists the pool balancing algorithms.
	LBAlgorithms = []string{"ROUND_ROBIN", "WEIGHTED_ROUND_ROBIN", "LEAST_CONNECTION", "WEIGHTED_LEAST_CONNECTION", "IP_HASH"}

	snatTypes       = []string{"LBSnatAutoMap", "LBSnatIpPool", "LBSnatDisabled"}
	memberStates    = []string{"ENABLED", "DISABLED", "GRACEFUL_DISABLED"}
	ipVersionFilter = []string{"IPV4", "IPV6", "IPV4_IPV6"}
)

// LoadBalancerSpec configures a load balancer service. LogLevel defaults
// to INFO.
type LoadBalancerSpec struct {
	Name     string
	Size     string
	Tier1    string
	LogLevel string
	Disabled bool
}

// ConfigureLoadBalancer creates or updates a load balancer service.
func (m *Manager) ConfigureLoadBalancer(ctx context.Context, spec LoadBalancerSpec) (*record.Record, error) {
	if spec.LogLevel == "" {
		spec.LogLevel = "INFO"
	}
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "load balancer name is required")
	if spec.Size != "" {
		v.Add(util.ContainsString(lbSizes, spec.Size), fmt.Sprintf("invalid size %q", spec.Size))
	}
	v.Add(util.ContainsString(lbLogLevels, spec.LogLevel), fmt.Sprintf("invalid log level %q", spec.LogLevel))
	if err := v.Build(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"resource_type":   "LBService",
		"display_name":    spec.Name,
		"enabled":         !spec.Disabled,
		"error_log_level": spec.LogLevel,
	}
	if spec.Size != "" {
		payload["size"] = spec.Size
	}
	if spec.Tier1 != "" {
		t1, err := m.dependency(ctx, fmt.Sprintf("load balancer '%s'", spec.Name), "tier1", "", spec.Tier1)
		if err != nil {
			return nil, err
		}
		payload["connectivity_path"] = t1
	}
	util.WithResource("lb", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-services/"+util.IDFromName(spec.Name), payload)
}

// LoadBalancerStatus returns the statistics ("stats"), usage ("usage") or
// detailed status ("status") of a load balancer service.
func (m *Manager) LoadBalancerStatus(ctx context.Context, name, view string) (*record.Record, error) {
	var endpoint string
	switch view {
	case "", "stats":
		endpoint = "statistics"
	case "usage":
		endpoint = "service-usage"
	case "status":
		endpoint = "detailed-status"
	default:
		return nil, util.NewValidationError(fmt.Sprintf("invalid status view %q", view))
	}
	path, err := m.Path(ctx, Ref{Kind: "lb", Name: name})
	if err != nil {
		return nil, err
	}
	return m.api.Get(ctx, PolicyAPI+path+"/"+endpoint, client.WithCodes(http.StatusOK))
}

// LBPoolSpec configures a load balancer pool. Members are
// "name|ip|state|backup|maxcon|port|weight" with only ip required; the
// other fields may be blank. MemberGroup and Members are exclusive. SNAT
// pool entries are "ip|prefix".
type LBPoolSpec struct {
	Name              string
	Description       string
	ActiveMonitor     string
	PassiveMonitor    string
	Algorithm         string
	MemberGroup       string
	MemberGroupIPs    string // ip_revision_filter
	MemberGroupMaxIPs int
	MemberGroupPort   int
	Members           []string
	MinActive         int
	SNATType          string
	SNATPool          []string
	TCPMultiplexing   bool
	TCPMultiplexCount int
}

// ParseMember parses one "name|ip|state|backup|maxcon|port|weight" entry.
func ParseMember(entry string) (map[string]interface{}, error) {
	f := strings.Split(entry, "|")
	if len(f) != 7 {
		return nil, fmt.Errorf("member %q: expected name|ip|state|backup|maxcon|port|weight", entry)
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}
	name, ip, state, backup, maxcon, port, weight := f[0], f[1], f[2], f[3], f[4], f[5], f[6]

	if !util.IsValidIP(ip) {
		return nil, fmt.Errorf("member %q: invalid ip %q", entry, ip)
	}
	m := map[string]interface{}{
		"ip_address":    ip,
		"backup_member": strings.EqualFold(backup, "true"),
	}
	if name != "" {
		m["display_name"] = name
	}
	if state != "" {
		state = strings.ToUpper(state)
		if !util.ContainsString(memberStates, state) {
			return nil, fmt.Errorf("member %q: invalid admin state %q", entry, state)
		}
		m["admin_state"] = state
	}
	for _, kv := range []struct {
		key, val string
		max      int
	}{
		{"max_concurrent_connections", maxcon, 2147483647},
		{"port", port, 65535},
		{"weight", weight, 256},
	} {
		if kv.val == "" {
			continue
		}
		n, err := strconv.Atoi(kv.val)
		if err != nil || n < 1 || n > kv.max {
			return nil, fmt.Errorf("member %q: invalid %s %q", entry, kv.key, kv.val)
		}
		if kv.key == "port" {
			m[kv.key] = kv.val
		} else {
			m[kv.key] = n
		}
	}
	return m, nil
}

func parseSNATAddress(entry string) (map[string]interface{}, error) {
	parts := strings.Split(entry, "|")
	if len(parts) != 2 {
		return nil, fmt.Errorf("snat address %q: expected ip|prefix", entry)
	}
	ip := net.ParseIP(strings.TrimSpace(parts[0]))
	if ip == nil {
		return nil, fmt.Errorf("snat address %q: expected ip|prefix", entry)
	}
	maxLen := 128
	if ip.To4() != nil {
		maxLen = 32
	}
	plen, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || plen < 0 || plen > maxLen {
		return nil, fmt.Errorf("snat address %q: invalid prefix length", entry)
	}
	return map[string]interface{}{
		"ip_address":    strings.TrimSpace(parts[0]),
		"prefix_length": plen,
	}, nil
}

func (s *LBPoolSpec) validate() ([]map[string]interface{}, []map[string]interface{}, error) {
	v := &util.ValidationBuilder{}
	v.Add(s.Name != "", "pool name is required")
	v.Add(s.MemberGroup == "" || len(s.Members) == 0, "member group and members are exclusive")
	if s.Algorithm != "" {
		v.Add(util.ContainsString(LBAlgorithms, s.Algorithm), fmt.Sprintf("invalid algorithm %q", s.Algorithm))
	}
	if s.MemberGroupIPs != "" {
		v.Add(util.ContainsString(ipVersionFilter, s.MemberGroupIPs), fmt.Sprintf("invalid ip revision filter %q", s.MemberGroupIPs))
	}
	v.Add(s.MemberGroupPort >= 0 && s.MemberGroupPort <= 65535, fmt.Sprintf("invalid member group port %d", s.MemberGroupPort))
	v.Add(s.MinActive >= 0, "min active members must not be negative")
	if s.SNATType != "" {
		v.Add(util.ContainsString(snatTypes, s.SNATType), fmt.Sprintf("invalid snat type %q", s.SNATType))
	}
	v.Add(s.SNATType != "LBSnatIpPool" || len(s.SNATPool) > 0, "LBSnatIpPool requires snat pool addresses")

	members := make([]map[string]interface{}, 0, len(s.Members))
	for _, entry := range s.Members {
		mbr, err := ParseMember(entry)
		if err != nil {
			v.AddError(err.Error())
			continue
		}
		members = append(members, mbr)
	}
	var snat []map[string]interface{}
	for _, entry := range s.SNATPool {
		a, err := parseSNATAddress(entry)
		if err != nil {
			v.AddError(err.Error())
			continue
		}
		snat = append(snat, a)
	}
	return members, snat, v.Build()
}

// ConfigureLBPool creates or updates a load balancer pool.
func (m *Manager) ConfigureLBPool(ctx context.Context, spec LBPoolSpec) (*record.Record, error) {
	members, snat, err := spec.validate()
	if err != nil {
		return nil, err
	}
	resource := fmt.Sprintf("lb pool '%s'", spec.Name)

	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.ActiveMonitor != "" {
		p, err := m.dependency(ctx, resource, "lb-monitor", "", spec.ActiveMonitor)
		if err != nil {
			return nil, err
		}
		payload["active_monitor_paths"] = []string{p}
	}
	if spec.PassiveMonitor != "" {
		p, err := m.dependency(ctx, resource, "lb-monitor", "", spec.PassiveMonitor)
		if err != nil {
			return nil, err
		}
		payload["passive_monitor_path"] = p
	}
	if spec.Algorithm != "" {
		payload["algorithm"] = spec.Algorithm
	}
	if spec.MemberGroup != "" {
		g, err := m.groupPath(ctx, resource, m.Domain, spec.MemberGroup)
		if err != nil {
			return nil, err
		}
		mg := map[string]interface{}{"group_path": g}
		if spec.MemberGroupIPs != "" {
			mg["ip_revision_filter"] = spec.MemberGroupIPs
		}
		if spec.MemberGroupMaxIPs > 0 {
			mg["max_ip_list_size"] = spec.MemberGroupMaxIPs
		}
		if spec.MemberGroupPort > 0 {
			mg["port"] = spec.MemberGroupPort
		}
		payload["member_group"] = mg
	}
	if len(members) > 0 {
		payload["members"] = members
	}
	if spec.MinActive > 0 {
		payload["min_active_members"] = spec.MinActive
	}
	if spec.SNATType != "" {
		st := map[string]interface{}{"type": spec.SNATType}
		if len(snat) > 0 {
			st["ip_addresses"] = snat
		}
		payload["snat_translation"] = st
	}
	if spec.TCPMultiplexing {
		payload["tcp_multiplexing_enabled"] = true
		if spec.TCPMultiplexCount > 0 {
			payload["tcp_multiplexing_number"] = spec.TCPMultiplexCount
		}
	}
	util.WithResource("lb-pool", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-pools/"+util.IDFromName(spec.Name), payload)
}

// VirtualServerSpec configures a load balancer virtual server.
type VirtualServerSpec struct {
	Name               string
	Description        string
	IPAddress          string
	Ports              []string
	AppProfile         string
	Persistence        string
	LoadBalancer       string
	Pool               string
	SorryPool          string
	AccessLog          bool
	Disabled           bool
	MaxConcurrentConns int
	MaxNewConnRate     int
}

// ConfigureVirtualServer creates or updates a virtual server.
func (m *Manager) ConfigureVirtualServer(ctx context.Context, spec VirtualServerSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "virtual server name is required")
	v.Add(util.IsValidIP(spec.IPAddress), fmt.Sprintf("invalid ip address %q", spec.IPAddress))
	v.Add(len(spec.Ports) > 0, "at least one port is required")
	for _, p := range spec.Ports {
		v.Add(validPortRange(p), fmt.Sprintf("invalid port %q", p))
	}
	v.Add(spec.AppProfile != "", "application profile is required")
	if err := v.Build(); err != nil {
		return nil, err
	}
	resource := fmt.Sprintf("virtual server '%s'", spec.Name)

	payload := map[string]interface{}{
		"display_name": spec.Name,
		"ip_address":   spec.IPAddress,
		"ports":        spec.Ports,
		"enabled":      !spec.Disabled,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.AccessLog {
		payload["access_log_enabled"] = true
	}
	if spec.MaxConcurrentConns > 0 {
		payload["max_concurrent_connections"] = spec.MaxConcurrentConns
	}
	if spec.MaxNewConnRate > 0 {
		payload["max_new_connection_rate"] = spec.MaxNewConnRate
	}
	for _, ref := range []struct {
		kind, name, key string
	}{
		{"lb-app-profile", spec.AppProfile, "application_profile_path"},
		{"lb-persistence", spec.Persistence, "lb_persistence_profile_path"},
		{"lb", spec.LoadBalancer, "lb_service_path"},
		{"lb-pool", spec.Pool, "pool_path"},
		{"lb-pool", spec.SorryPool, "sorry_pool_path"},
	} {
		if ref.name == "" {
			continue
		}
		p, err := m.dependency(ctx, resource, ref.kind, "", ref.name)
		if err != nil {
			return nil, err
		}
		payload[ref.key] = p
	}
	util.WithResource("lb-vip", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-virtual-servers/"+util.IDFromName(spec.Name), payload)
}

// validPortRange accepts "port" or "low-high".
func validPortRange(p string) bool {
	lo, hi, found := strings.Cut(p, "-")
	if !found {
		hi = lo
	}
	a, err := strconv.Atoi(lo)
	if err != nil {
		return false
	}
	b, err := strconv.Atoi(hi)
	if err != nil {
		return false
	}
	return a > 0 && a <= b && b <= 65535
}
