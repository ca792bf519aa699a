// Package objects builds and applies configuration for manager resources:
// segments, gateways, groups, firewall policies, load balancers and the
// collections used to resolve them by name.
package objects

import (
	"sort"
	"strings"
)

// Kind describes a listable resource type.
type Kind struct {
	// Name is the CLI noun.
	Name string
	// Label is used in messages.
	Label string
	// API is the listing path. It may contain {site}, {ep} and {domain}
	// placeholders.
	API string
	// Parent names the kind whose record path prefixes Suffix to form the
	// listing path. API is ignored when Parent is set.
	Parent string
	Suffix string
	// MatchField overrides display_name for name matching.
	MatchField string
	// Manager marks management-plane kinds, which have ids but no
	// policy path.
	Manager bool
}

const policyInfra = "/policy/api/v1/infra"

var kinds = map[string]Kind{
	"site":           {Name: "site", Label: "site", API: policyInfra + "/sites"},
	"enforce":        {Name: "enforce", Label: "enforcement point", API: policyInfra + "/sites/{site}/enforcement-points"},
	"tz":             {Name: "tz", Label: "transport zone", API: policyInfra + "/sites/{site}/enforcement-points/{ep}/transport-zones"},
	"edgecluster":    {Name: "edgecluster", Label: "edge cluster", API: policyInfra + "/sites/{site}/enforcement-points/{ep}/edge-clusters"},
	"edge":           {Name: "edge", Label: "edge node", Parent: "edgecluster", Suffix: "/edge-nodes"},
	"segment":        {Name: "segment", Label: "segment", API: policyInfra + "/segments"},
	"port":           {Name: "port", Label: "segment port", Parent: "segment", Suffix: "/ports"},
	"tier0":          {Name: "tier0", Label: "tier0", API: policyInfra + "/tier-0s"},
	"tier1":          {Name: "tier1", Label: "tier1", API: policyInfra + "/tier-1s"},
	"prefixlist":     {Name: "prefixlist", Label: "prefix list", Parent: "tier0", Suffix: "/prefix-lists"},
	"community":      {Name: "community", Label: "community list", Parent: "tier0", Suffix: "/community-lists"},
	"routemap":       {Name: "routemap", Label: "route map", Parent: "tier0", Suffix: "/route-maps"},
	"domain":         {Name: "domain", Label: "domain", API: policyInfra + "/domains"},
	"group":          {Name: "group", Label: "group", API: policyInfra + "/domains/{domain}/groups"},
	"service":        {Name: "service", Label: "service", API: policyInfra + "/services"},
	"policy":         {Name: "policy", Label: "security policy", API: policyInfra + "/domains/{domain}/security-policies"},
	"rule":           {Name: "rule", Label: "rule", Parent: "policy", Suffix: "/rules"},
	"dhcprelay":      {Name: "dhcprelay", Label: "dhcp relay", API: policyInfra + "/dhcp-relay-configs"},
	"ippool":         {Name: "ippool", Label: "ip pool", API: policyInfra + "/ip-pools"},
	"vm":             {Name: "vm", Label: "virtual machine", API: policyInfra + "/realized-state/enforcement-points/{ep}/virtual-machines"},
	"cert":           {Name: "cert", Label: "certificate", API: policyInfra + "/certificates"},
	"role":           {Name: "role", Label: "role", API: "/policy/api/v1/aaa/roles", MatchField: "role"},
	"tnprofile":      {Name: "tnprofile", Label: "transport node profile", API: "/api/v1/transport-node-profiles", Manager: true},
	"lb":             {Name: "lb", Label: "load balancer", API: policyInfra + "/lb-services"},
	"lb-pool":        {Name: "lb-pool", Label: "lb pool", API: policyInfra + "/lb-pools"},
	"lb-vip":         {Name: "lb-vip", Label: "lb virtual server", API: policyInfra + "/lb-virtual-servers"},
	"lb-app-profile": {Name: "lb-app-profile", Label: "lb application profile", API: policyInfra + "/lb-app-profiles"},
	"lb-monitor":     {Name: "lb-monitor", Label: "lb monitor profile", API: policyInfra + "/lb-monitor-profiles"},
	"lb-persistence": {Name: "lb-persistence", Label: "lb persistence profile", API: policyInfra + "/lb-persistence-profiles"},
	"lb-client-ssl":  {Name: "lb-client-ssl", Label: "lb client ssl profile", API: policyInfra + "/lb-client-ssl-profiles"},
	"lb-server-ssl":  {Name: "lb-server-ssl", Label: "lb server ssl profile", API: policyInfra + "/lb-server-ssl-profiles"},
}

// LookupKind returns the registered kind for a CLI noun.
func LookupKind(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// Kinds returns all registered kinds sorted by name.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// KindNames returns the sorted CLI nouns.
func KindNames() []string {
	names := make([]string, 0, len(kinds))
	for _, k := range Kinds() {
		names = append(names, k.Name)
	}
	return names
}

// HasParent reports whether listing this kind needs a parent name.
func (k Kind) HasParent() bool {
	return k.Parent != ""
}

// expand fills the {site}, {ep} and {domain} placeholders.
func (k Kind) expand(site, ep, domain string) string {
	r := strings.NewReplacer("{site}", site, "{ep}", ep, "{domain}", domain)
	return r.Replace(k.API)
}
