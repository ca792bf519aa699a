package objects

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/newtron-network/nsxctl/pkg/client"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// Application profile types
const (
	AppProfileHTTP = "HTTP"
	AppProfileTCP  = "TCP"
	AppProfileUDP  = "UDP"
)

var (
	xForwardedFor = []string{"INSERT", "REPLACE"}

	// MonitorTypes lists the monitor profile types.
	MonitorTypes = []string{"ACTIVE", "PASSIVE", "ICMP", "TCP", "UDP", "HTTP", "HTTPS"}

	monitorResourceTypes = map[string]string{
		"ACTIVE":  "LBActiveMonitorProfile",
		"PASSIVE": "LBPassiveMonitorProfile",
		"ICMP":    "LBIcmpMonitorProfile",
		"TCP":     "LBTcpMonitorProfile",
		"UDP":     "LBUdpMonitorProfile",
		"HTTP":    "LBHttpMonitorProfile",
		"HTTPS":   "LBHttpsMonitorProfile",
	}
	httpMethods  = []string{"GET", "OPTIONS", "POST", "HEAD", "PUT"}
	httpVersions = []string{"HTTP_VERSION_1_0", "HTTP_VERSION_1_1", "HTTP_VERSION_2_0"}

	cipherGroups = []string{"BALANCED", "HIGH_SECURITY", "HIGH_COMPATIBILITY", "CUSTOM"}
	sslProtocols = []string{"SSL_V2", "SSL_V3", "TLS_V1", "TLS_V1_1", "TLS_V1_2"}
	cookieModes  = []string{"INSERT", "PREFIX", "REWRITE"}
)

// ============================================================================
// Application profiles
// ============================================================================

// AppProfileSpec configures an HTTP, TCP or UDP application profile.
// Fields that do not apply to the type are ignored.
type AppProfileSpec struct {
	Name               string
	Description        string
	Type               string
	IdleTimeout        int
	CloseTimeout       int // TCP
	Mirror             bool
	RedirectURL        string // HTTP from here on
	RedirectToHTTPS    bool
	NTLM               bool
	RequestBodySize    int
	RequestHeaderSize  int
	ResponseHeaderSize int
	ResponseTimeout    int
	XForwardedFor      string
}

// ConfigureLBAppProfile creates or updates an application profile.
func (m *Manager) ConfigureLBAppProfile(ctx context.Context, spec AppProfileSpec) (*record.Record, error) {
	spec.Type = strings.ToUpper(spec.Type)
	if spec.Type == "" {
		spec.Type = AppProfileHTTP
	}
	spec.XForwardedFor = strings.ToUpper(spec.XForwardedFor)

	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "application profile name is required")
	v.Add(util.ContainsString([]string{AppProfileHTTP, AppProfileTCP, AppProfileUDP}, spec.Type),
		fmt.Sprintf("invalid application profile type %q", spec.Type))
	if spec.XForwardedFor != "" {
		v.Add(util.ContainsString(xForwardedFor, spec.XForwardedFor), fmt.Sprintf("invalid x-forwarded-for %q", spec.XForwardedFor))
	}
	for _, n := range []int{spec.IdleTimeout, spec.CloseTimeout, spec.RequestBodySize, spec.RequestHeaderSize, spec.ResponseHeaderSize, spec.ResponseTimeout} {
		v.Add(n >= 0, "timeouts and sizes must not be negative")
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.IdleTimeout > 0 {
		payload["idle_timeout"] = spec.IdleTimeout
	}
	switch spec.Type {
	case AppProfileUDP:
		payload["resource_type"] = "LBFastUdpProfile"
		if spec.Mirror {
			payload["flow_mirroring_enabled"] = true
		}
	case AppProfileTCP:
		payload["resource_type"] = "LBFastTcpProfile"
		if spec.CloseTimeout > 0 {
			payload["close_timeout"] = spec.CloseTimeout
		}
		if spec.Mirror {
			payload["ha_flow_mirroring_enabled"] = true
		}
	default:
		payload["resource_type"] = "LBHttpProfile"
		if spec.RedirectURL != "" {
			payload["http_redirect_to"] = spec.RedirectURL
		}
		if spec.RedirectToHTTPS {
			payload["http_redirect_to_https"] = true
		}
		if spec.NTLM {
			payload["ntlm"] = true
		}
		for key, n := range map[string]int{
			"request_body_size":    spec.RequestBodySize,
			"request_header_size":  spec.RequestHeaderSize,
			"response_header_size": spec.ResponseHeaderSize,
			"response_timeout":     spec.ResponseTimeout,
		} {
			if n > 0 {
				payload[key] = n
			}
		}
		if spec.XForwardedFor != "" {
			payload["x_forwarded_for"] = spec.XForwardedFor
		}
	}
	util.WithResource("lb-app-profile", spec.Name).WithField("type", spec.Type).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-app-profiles/"+util.IDFromName(spec.Name), payload)
}

// ============================================================================
// Monitor profiles
// ============================================================================

// MonitorSpec configures a monitor profile. The counts, interval and port
// apply to every type but PASSIVE; MaxFails applies only to PASSIVE.
// Request headers are "name:value".
type MonitorSpec struct {
	Name        string
	Description string
	Type        string
	FallCount   int
	RiseCount   int
	Interval    int
	Timeout     int
	Port        int
	MaxFails    int    // PASSIVE
	DataLength  int    // ICMP
	Send        string // TCP, UDP
	Receive     string

	RequestMethod  string // HTTP, HTTPS
	RequestURL     string
	RequestVersion string
	RequestBody    string
	RequestHeaders []string
	ResponseBody   string
	ResponseCodes  []int
}

func (s *MonitorSpec) validate() ([]map[string]string, error) {
	v := &util.ValidationBuilder{}
	v.Add(s.Name != "", "monitor name is required")
	v.Add(util.ContainsString(MonitorTypes, s.Type), fmt.Sprintf("invalid monitor type %q", s.Type))
	v.Add(s.Port >= 0 && s.Port <= 65535, fmt.Sprintf("invalid monitor port %d", s.Port))
	for _, n := range []int{s.FallCount, s.RiseCount, s.Interval, s.Timeout, s.MaxFails, s.DataLength} {
		v.Add(n >= 0, "counts and timers must not be negative")
	}
	if s.Type == "UDP" {
		v.Add(s.Send != "" && s.Receive != "", "UDP monitors need send and receive")
	}
	if s.RequestMethod != "" {
		v.Add(util.ContainsString(httpMethods, s.RequestMethod), fmt.Sprintf("invalid request method %q", s.RequestMethod))
	}
	if s.RequestVersion != "" {
		v.Add(util.ContainsString(httpVersions, s.RequestVersion), fmt.Sprintf("invalid request version %q", s.RequestVersion))
	}
	for _, c := range s.ResponseCodes {
		v.Add(c >= 100 && c <= 599, fmt.Sprintf("invalid response status code %d", c))
	}
	headers := make([]map[string]string, 0, len(s.RequestHeaders))
	for _, h := range s.RequestHeaders {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			v.AddErrorf("request header %q: expected name:value", h)
			continue
		}
		headers = append(headers, map[string]string{"name": strings.TrimSpace(name), "value": strings.TrimSpace(value)})
	}
	return headers, v.Build()
}

// ConfigureLBMonitor creates or updates a monitor profile.
func (m *Manager) ConfigureLBMonitor(ctx context.Context, spec MonitorSpec) (*record.Record, error) {
	spec.Type = strings.ToUpper(spec.Type)
	spec.RequestMethod = strings.ToUpper(spec.RequestMethod)
	headers, err := spec.validate()
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"display_name":  spec.Name,
		"resource_type": monitorResourceTypes[spec.Type],
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.Type == "PASSIVE" {
		if spec.MaxFails > 0 {
			payload["max_fails"] = spec.MaxFails
		}
		if spec.Timeout > 0 {
			payload["timeout"] = spec.Timeout
		}
	} else {
		for key, n := range map[string]int{
			"fall_count":   spec.FallCount,
			"rise_count":   spec.RiseCount,
			"interval":     spec.Interval,
			"timeout":      spec.Timeout,
			"monitor_port": spec.Port,
		} {
			if n > 0 {
				payload[key] = n
			}
		}
	}
	switch spec.Type {
	case "ICMP":
		if spec.DataLength > 0 {
			payload["data_length"] = spec.DataLength
		}
	case "TCP", "UDP":
		if spec.Send != "" {
			payload["send"] = spec.Send
		}
		if spec.Receive != "" {
			payload["receive"] = spec.Receive
		}
	case "HTTP", "HTTPS":
		for key, s := range map[string]string{
			"request_method":  spec.RequestMethod,
			"request_url":     spec.RequestURL,
			"request_version": spec.RequestVersion,
			"request_body":    spec.RequestBody,
			"response_body":   spec.ResponseBody,
		} {
			if s != "" {
				payload[key] = s
			}
		}
		if len(headers) > 0 {
			payload["request_headers"] = headers
		}
		if len(spec.ResponseCodes) > 0 {
			payload["response_status_codes"] = spec.ResponseCodes
		}
	}
	util.WithResource("lb-monitor", spec.Name).WithField("type", spec.Type).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-monitor-profiles/"+util.IDFromName(spec.Name), payload)
}

// ============================================================================
// SSL and persistence profiles
// ============================================================================

// SSLProfileSpec configures a client or server SSL profile. PreferServer
// and SessionCacheTimeout apply only to client profiles.
type SSLProfileSpec struct {
	Name                string
	Description         string
	Ciphers             []string
	CipherGroup         string
	Protocols           []string
	SessionCache        *bool
	PreferServer        *bool
	SessionCacheTimeout int
}

func (s *SSLProfileSpec) payload() (map[string]interface{}, error) {
	s.CipherGroup = strings.ToUpper(s.CipherGroup)
	v := &util.ValidationBuilder{}
	v.Add(s.Name != "", "ssl profile name is required")
	if s.CipherGroup != "" {
		v.Add(util.ContainsString(cipherGroups, s.CipherGroup), fmt.Sprintf("invalid cipher group %q", s.CipherGroup))
	}
	protocols := make([]string, 0, len(s.Protocols))
	for _, p := range s.Protocols {
		p = strings.ToUpper(p)
		v.Add(util.ContainsString(sslProtocols, p), fmt.Sprintf("invalid ssl protocol %q", p))
		protocols = append(protocols, p)
	}
	v.Add(s.SessionCacheTimeout >= 0, "session cache timeout must not be negative")
	if err := v.Build(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"display_name": s.Name}
	if s.Description != "" {
		payload["description"] = s.Description
	}
	if len(s.Ciphers) > 0 {
		payload["ciphers"] = s.Ciphers
	}
	if s.CipherGroup != "" {
		payload["cipher_group_label"] = s.CipherGroup
	}
	if len(protocols) > 0 {
		payload["protocols"] = protocols
	}
	if s.SessionCache != nil {
		payload["session_cache_enabled"] = *s.SessionCache
	}
	return payload, nil
}

// ConfigureLBClientSSL creates or updates a client SSL profile.
func (m *Manager) ConfigureLBClientSSL(ctx context.Context, spec SSLProfileSpec) (*record.Record, error) {
	payload, err := spec.payload()
	if err != nil {
		return nil, err
	}
	if spec.PreferServer != nil {
		payload["prefer_server_ciphers"] = *spec.PreferServer
	}
	if spec.SessionCacheTimeout > 0 {
		payload["session_cache_timeout"] = spec.SessionCacheTimeout
	}
	util.WithResource("lb-client-ssl", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-client-ssl-profiles/"+util.IDFromName(spec.Name), payload)
}

// ConfigureLBServerSSL creates or updates a server SSL profile.
func (m *Manager) ConfigureLBServerSSL(ctx context.Context, spec SSLProfileSpec) (*record.Record, error) {
	payload, err := spec.payload()
	if err != nil {
		return nil, err
	}
	util.WithResource("lb-server-ssl", spec.Name).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-server-ssl-profiles/"+util.IDFromName(spec.Name), payload)
}

// Persistence profile types
const (
	PersistenceSource = "source"
	PersistenceCookie = "cookie"
)

// PersistenceSpec configures a source IP or cookie persistence profile.
type PersistenceSpec struct {
	Name        string
	Description string
	Type        string
	Shared      bool

	Purge   bool // source
	Timeout int
	Mirror  bool

	CookieDomain    string // cookie
	CookieName      string
	CookiePath      string
	CookieMode      string
	DisableFallback bool
	DisableGarble   bool
	MaxIdle         int
	MaxLife         int
}

// ConfigureLBPersistence creates or updates a persistence profile.
func (m *Manager) ConfigureLBPersistence(ctx context.Context, spec PersistenceSpec) (*record.Record, error) {
	spec.Type = strings.ToLower(spec.Type)
	spec.CookieMode = strings.ToUpper(spec.CookieMode)
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "persistence profile name is required")
	v.Add(spec.Type == PersistenceSource || spec.Type == PersistenceCookie,
		fmt.Sprintf("invalid persistence type %q: expected source or cookie", spec.Type))
	if spec.CookieMode != "" {
		v.Add(util.ContainsString(cookieModes, spec.CookieMode), fmt.Sprintf("invalid cookie mode %q", spec.CookieMode))
	}
	v.Add(spec.Timeout >= 0 && spec.MaxIdle >= 0 && spec.MaxLife >= 0, "timers must not be negative")
	if err := v.Build(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{"display_name": spec.Name}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.Shared {
		payload["persistence_shared"] = true
	}
	if spec.Type == PersistenceSource {
		payload["resource_type"] = "LBSourceIpPersistenceProfile"
		if spec.Purge {
			payload["purge"] = "FULL"
		}
		if spec.Timeout > 0 {
			payload["timeout"] = spec.Timeout
		}
		if spec.Mirror {
			payload["ha_persistence_mirroring_enabled"] = true
		}
	} else {
		payload["resource_type"] = "LBCookiePersistenceProfile"
		for key, s := range map[string]string{
			"cookie_domain": spec.CookieDomain,
			"cookie_name":   spec.CookieName,
			"cookie_path":   spec.CookiePath,
			"cookie_mode":   spec.CookieMode,
		} {
			if s != "" {
				payload[key] = s
			}
		}
		if spec.DisableFallback {
			payload["cookie_fallback"] = false
		}
		if spec.DisableGarble {
			payload["cookie_garble"] = false
		}
		if spec.MaxIdle > 0 || spec.MaxLife > 0 {
			ct := map[string]interface{}{"type": "LBPersistenceCookieTime"}
			if spec.MaxLife > 0 {
				ct["type"] = "LBSessionCookieTime"
				ct["cookie_max_life"] = spec.MaxLife
			}
			if spec.MaxIdle > 0 {
				ct["cookie_max_idle"] = spec.MaxIdle
			}
			payload["cookie_time"] = ct
		}
	}
	util.WithResource("lb-persistence", spec.Name).WithField("type", spec.Type).Info("configuring")
	return m.patch(ctx, policyInfra+"/lb-persistence-profiles/"+util.IDFromName(spec.Name), payload)
}

// ============================================================================
// Pool and virtual server status
// ============================================================================

// LBPoolStatus returns the status ("status") or statistics ("stats") of a
// pool as seen by a load balancer. Realtime bypasses the manager's cache.
func (m *Manager) LBPoolStatus(ctx context.Context, lb, pool, view string, realtime bool) (*record.Record, error) {
	return m.lbMemberStatus(ctx, lb, "lb-pool", "/lb-pools/", pool, view, realtime)
}

// VirtualServerStatus returns the status ("status") or statistics
// ("stats") of a virtual server on a load balancer.
func (m *Manager) VirtualServerStatus(ctx context.Context, lb, vip, view string, realtime bool) (*record.Record, error) {
	return m.lbMemberStatus(ctx, lb, "lb-vip", "/lb-virtual-servers/", vip, view, realtime)
}

func (m *Manager) lbMemberStatus(ctx context.Context, lb, kind, segment, name, view string, realtime bool) (*record.Record, error) {
	var endpoint string
	switch view {
	case "", "status":
		endpoint = "detailed-status"
	case "stats":
		endpoint = "statistics"
	default:
		return nil, util.NewValidationError(fmt.Sprintf("invalid status view %q", view))
	}
	v := &util.ValidationBuilder{}
	v.Add(lb != "", "load balancer name is required")
	v.Add(name != "", "name is required")
	if err := v.Build(); err != nil {
		return nil, err
	}
	lbPath, err := m.Path(ctx, Ref{Kind: "lb", Name: lb})
	if err != nil {
		return nil, err
	}
	rec, err := m.Find(ctx, Ref{Kind: kind, Name: name})
	if err != nil {
		return nil, err
	}
	source := "cached"
	if realtime {
		source = "realtime"
	}
	api := PolicyAPI + lbPath + segment + rec.ID() + "/" + endpoint + "?source=" + source
	return m.api.Get(ctx, api, client.WithCodes(http.StatusOK))
}
