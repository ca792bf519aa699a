package objects

import (
	"context"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"

	"github.com/newtron-network/nsxctl/pkg/client"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/resolver"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// Enforcement point actions
const (
	ActionFullSync = "full-sync"
	ActionReload   = "reload"
)

// EnforcementPointAction triggers a full sync or reload of the manager's
// enforcement point.
func (m *Manager) EnforcementPointAction(ctx context.Context, action string) (*record.Record, error) {
	if action != ActionFullSync && action != ActionReload {
		return nil, util.NewValidationError(fmt.Sprintf("invalid enforcement point action %q", action))
	}
	path, err := m.mustPath(ctx, "enforce", "", "", m.EnforcementPoint)
	if err != nil {
		return nil, err
	}
	util.WithResource("enforce", m.EnforcementPoint).WithField("action", action).Info("enforcement point action")
	return m.api.Post(ctx, PolicyAPI+path+"?action="+action, client.WithCodes(http.StatusOK))
}

// Cluster views, keyed by CLI name.
var clusterAPIs = map[string]string{
	"info":    "/api/v1/cluster",
	"status":  "/api/v1/cluster/status",
	"health":  "/api/v1/reverse-proxy/node/health",
	"manager": "/api/v1/cluster-manager/status",
	"vip":     "/api/v1/cluster/api-virtual-ip",
}

// ClusterViews returns the names accepted by Cluster.
func ClusterViews() []string {
	return []string{"info", "status", "health", "manager", "vip"}
}

// Cluster reads one of the management cluster views.
func (m *Manager) Cluster(ctx context.Context, view string) (*record.Record, error) {
	api, ok := clusterAPIs[view]
	if !ok {
		return nil, util.NewValidationError(fmt.Sprintf("invalid cluster view %q", view))
	}
	return m.api.Get(ctx, api, client.WithCodes(http.StatusOK))
}

// ClusterNodes lists the management cluster nodes.
func (m *Manager) ClusterNodes(ctx context.Context) (*record.Listing, error) {
	return m.res.List(ctx, resolver.Collection{Kind: "cluster node", API: "/api/v1/cluster/nodes"})
}

// ============================================================================
// Cluster VIP and API certificate
// ============================================================================

const (
	clusterVIPAPI  = "/api/v1/cluster/api-virtual-ip"
	clusterCertAPI = "/api/v1/cluster/api-certificate"
	trustCertsAPI  = "/api/v1/trust-management/certificates"
)

// SetClusterVIP sets the virtual IP of the management cluster.
func (m *Manager) SetClusterVIP(ctx context.Context, ip string) (*record.Record, error) {
	if !util.IsValidIP(ip) {
		return nil, util.NewValidationError(fmt.Sprintf("invalid cluster virtual ip %q", ip))
	}
	util.WithResource("cluster", "vip").WithField("ip", ip).Info("setting virtual ip")
	return m.api.Post(ctx, clusterVIPAPI+"?action=set_virtual_ip&ip_address="+url.QueryEscape(ip), client.WithCodes(http.StatusOK))
}

// ClearClusterVIP removes the virtual IP of the management cluster.
func (m *Manager) ClearClusterVIP(ctx context.Context) (*record.Record, error) {
	util.WithResource("cluster", "vip").Info("clearing virtual ip")
	return m.api.Post(ctx, clusterVIPAPI+"?action=clear_virtual_ip", client.WithCodes(http.StatusOK))
}

// ClusterCertificate returns the certificate the cluster API presents.
func (m *Manager) ClusterCertificate(ctx context.Context) (*record.Record, error) {
	return m.api.Get(ctx, clusterCertAPI, client.WithCodes(http.StatusOK))
}

// trustCertificateID resolves a certificate name to its trust management
// id.
func (m *Manager) trustCertificateID(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", util.NewValidationError("certificate name is required")
	}
	c := resolver.Collection{Kind: "certificate", API: trustCertsAPI}
	id, err := m.res.IDByName(ctx, c, name, nil)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", util.NewNotFoundError("certificate", name)
	}
	return id, nil
}

// SetClusterCertificate makes the named certificate the cluster API
// certificate.
func (m *Manager) SetClusterCertificate(ctx context.Context, name string) (*record.Record, error) {
	return m.clusterCertificateAction(ctx, "set_cluster_certificate", name)
}

// ClearClusterCertificate stops the cluster API from presenting the named
// certificate.
func (m *Manager) ClearClusterCertificate(ctx context.Context, name string) (*record.Record, error) {
	return m.clusterCertificateAction(ctx, "clear_cluster_certificate", name)
}

func (m *Manager) clusterCertificateAction(ctx context.Context, action, name string) (*record.Record, error) {
	id, err := m.trustCertificateID(ctx, name)
	if err != nil {
		return nil, err
	}
	util.WithResource("cluster", "api-certificate").WithField("certificate", name).Info(action)
	return m.api.Post(ctx, clusterCertAPI+"?action="+action+"&certificate_id="+url.QueryEscape(id), client.WithCodes(http.StatusOK))
}

// CertificateSpec imports a PEM certificate, optionally with its private
// key.
type CertificateSpec struct {
	Name        string
	Description string
	PEM         string
	PrivateKey  string
	Passphrase  string
}

// ImportCertificate creates or replaces a policy certificate.
func (m *Manager) ImportCertificate(ctx context.Context, spec CertificateSpec) (*record.Record, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.Name != "", "certificate name is required")
	block, _ := pem.Decode([]byte(spec.PEM))
	v.Add(block != nil && block.Type == "CERTIFICATE", "certificate is not PEM encoded")
	if spec.PrivateKey != "" {
		key, _ := pem.Decode([]byte(spec.PrivateKey))
		v.Add(key != nil, "private key is not PEM encoded")
	}
	if err := v.Build(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"display_name": spec.Name,
		"pem_encoded":  spec.PEM,
	}
	if spec.Description != "" {
		payload["description"] = spec.Description
	}
	if spec.PrivateKey != "" {
		payload["private_key"] = spec.PrivateKey
	}
	if spec.Passphrase != "" {
		payload["passphrase"] = spec.Passphrase
	}
	util.WithResource("cert", spec.Name).Info("importing")
	return m.patch(ctx, policyInfra+"/certificates/"+util.IDFromName(spec.Name), payload)
}

// ============================================================================
// Global configs
// ============================================================================

const globalConfigsAPI = "/api/v1/global-configs/"

// SwitchingConfigSpec updates the switching global config. Zero values
// are left unchanged.
type SwitchingConfigSpec struct {
	Name        string
	Description string
	UplinkMTU   int
	Replication *bool
}

// RoutingConfigSpec updates the routing global config. Zero values are
// left unchanged.
type RoutingConfigSpec struct {
	Name          string
	Description   string
	UplinkMTU     int
	L3ForwardMode string
}

var l3ForwardingModes = []string{"IPV4_ONLY", "IPV4_AND_IPV6"}

// UpdateSwitchingConfig applies spec to SwitchingGlobalConfig. It reports
// false without writing when nothing would change.
func (m *Manager) UpdateSwitchingConfig(ctx context.Context, spec SwitchingConfigSpec) (*record.Record, bool, error) {
	if spec.UplinkMTU < 0 {
		return nil, false, util.NewValidationError(fmt.Sprintf("invalid uplink mtu %d", spec.UplinkMTU))
	}
	changes := map[string]interface{}{}
	if spec.Name != "" {
		changes["display_name"] = spec.Name
	}
	if spec.Description != "" {
		changes["description"] = spec.Description
	}
	if spec.UplinkMTU > 0 {
		changes["physical_uplink_mtu"] = spec.UplinkMTU
	}
	if spec.Replication != nil {
		changes["global_replication_mode_enabled"] = *spec.Replication
	}
	return m.updateGlobalConfig(ctx, "SwitchingGlobalConfig", changes)
}

// UpdateRoutingConfig applies spec to RoutingGlobalConfig. It reports
// false without writing when nothing would change.
func (m *Manager) UpdateRoutingConfig(ctx context.Context, spec RoutingConfigSpec) (*record.Record, bool, error) {
	v := &util.ValidationBuilder{}
	v.Add(spec.UplinkMTU >= 0, fmt.Sprintf("invalid uplink mtu %d", spec.UplinkMTU))
	if spec.L3ForwardMode != "" {
		v.Add(util.ContainsString(l3ForwardingModes, spec.L3ForwardMode), fmt.Sprintf("invalid l3 forwarding mode %q", spec.L3ForwardMode))
	}
	if err := v.Build(); err != nil {
		return nil, false, err
	}
	changes := map[string]interface{}{}
	if spec.Name != "" {
		changes["display_name"] = spec.Name
	}
	if spec.Description != "" {
		changes["description"] = spec.Description
	}
	if spec.UplinkMTU > 0 {
		changes["logical_uplink_mtu"] = spec.UplinkMTU
	}
	if spec.L3ForwardMode != "" {
		changes["l3_forwarding_mode"] = spec.L3ForwardMode
	}
	return m.updateGlobalConfig(ctx, "RoutingGlobalConfig", changes)
}

// GlobalConfig reads SwitchingGlobalConfig or RoutingGlobalConfig.
func (m *Manager) GlobalConfig(ctx context.Context, kind string) (*record.Record, error) {
	if kind != "SwitchingGlobalConfig" && kind != "RoutingGlobalConfig" {
		return nil, util.NewValidationError(fmt.Sprintf("invalid global config %q", kind))
	}
	return m.api.Get(ctx, globalConfigsAPI+kind, client.WithCodes(http.StatusOK))
}

// updateGlobalConfig reads the config, applies changes and writes it back
// with its revision when any value differs.
func (m *Manager) updateGlobalConfig(ctx context.Context, kind string, changes map[string]interface{}) (*record.Record, bool, error) {
	current, err := m.GlobalConfig(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	if current == nil {
		current = record.New()
	}
	changed := false
	for key, val := range changes {
		if current.Has(key) && current.String(key) == fmt.Sprint(val) {
			continue
		}
		if err := current.Set(val, key); err != nil {
			return nil, false, err
		}
		changed = true
	}
	if !changed {
		util.WithResource("global-config", kind).Info("no change")
		return current, false, nil
	}
	util.WithResource("global-config", kind).Info("updating")
	rec, err := m.api.Put(ctx, globalConfigsAPI+kind, client.WithBody(current), client.WithCodes(http.StatusOK))
	return rec, true, err
}
