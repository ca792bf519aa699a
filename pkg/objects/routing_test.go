package objects

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/nsxctl/pkg/util"
)

const t0BGP = PolicyAPI + "/infra/tier-0s/t0-edge/locale-services/default/bgp"

func boolPtr(b bool) *bool { return &b }

// withRoutingLists serves the prefix lists, route maps and community lists
// of t0-edge.
func withRoutingLists(f *fakeManager) {
	t0 := policyInfra + "/tier-0s/t0-edge"
	f.gets[t0+"/prefix-lists"] = `{"results":[{"display_name":"rfc1918","path":"/infra/tier-0s/t0-edge/prefix-lists/rfc1918"}]}`
	f.gets[t0+"/route-maps"] = `{"results":[{"display_name":"rm-out","path":"/infra/tier-0s/t0-edge/route-maps/rm-out"}]}`
	f.gets[t0+"/community-lists"] = `{"results":[{"display_name":"no-export","path":"/infra/tier-0s/t0-edge/community-lists/no-export"}]}`
}

func TestValidASN(t *testing.T) {
	for as, want := range map[string]bool{
		"65001": true, "4200000000": true, "1.10": true,
		"0": false, "": false, "4294967296": false, "1.70000": false, "1.2.3": false, "AS65001": false,
	} {
		assert.Equal(t, want, validASN(as), as)
	}
}

func TestTier0BGP(t *testing.T) {
	m, f := newFakeManager(t)
	f.gets[t0BGP] = `{"local_as_num":"65001","enabled":true}`

	rec, err := m.Tier0BGP(context.Background(), "t0-edge")
	require.NoError(t, err)
	assert.Equal(t, "65001", rec.String("local_as_num"))

	delete(f.gets, t0BGP)
	_, err = m.Tier0BGP(context.Background(), "t0-edge")
	assert.True(t, errors.Is(err, util.ErrNotFound), "missing bgp config is a not-found, got %v", err)

	_, err = m.Tier0BGP(context.Background(), "t0-missing")
	assert.True(t, errors.Is(err, util.ErrNotFound))
}

func TestConfigureTier0BGP(t *testing.T) {
	m, f := newFakeManager(t)
	_, err := m.ConfigureTier0BGP(context.Background(), BGPSpec{
		Tier0:        "t0-edge",
		LocalAS:      "65001",
		ECMP:         boolPtr(true),
		InterSRIBGP:  boolPtr(false),
		Aggregations: []string{"10.0.0.0/8:true", "2001:db8::/32", "172.16.0.0/12:FALSE"},
	})
	require.NoError(t, err)
	req := f.only(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, t0BGP, req.URI)
	assert.Equal(t, "BgpRoutingConfig", req.Body["resource_type"])
	assert.Equal(t, "65001", req.Body["local_as_num"])
	assert.Equal(t, true, req.Body["ecmp"])
	assert.Equal(t, false, req.Body["inter_sr_ibgp"])
	assert.NotContains(t, req.Body, "multipath_relax", "unset toggles are not sent")
	assert.NotContains(t, req.Body, "graceful_restart")
	assert.Equal(t, asJSON(t, []map[string]interface{}{
		{"prefix": "10.0.0.0/8", "summary_only": true},
		{"prefix": "2001:db8::/32"},
		{"prefix": "172.16.0.0/12", "summary_only": false},
	}), req.Body["route_aggregations"])
}

func TestConfigureTier0BGPValidation(t *testing.T) {
	m, f := newFakeManager(t)
	_, err := m.ConfigureTier0BGP(context.Background(), BGPSpec{Tier0: "t0-edge", LocalAS: "x", Aggregations: []string{"10.0.0.1"}})
	require.True(t, errors.Is(err, util.ErrValidationFailed))
	var ve *util.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 2)
	assert.Zero(t, f.getCount)
}

func TestTier0BGPNeighbors(t *testing.T) {
	m, f := newFakeManager(t)
	f.gets[t0BGP+"/neighbors"] = `{"results":[{"display_name":"isp1","neighbor_address":"192.0.2.1"}],"result_count":1}`
	listing, err := m.Tier0BGPNeighbors(context.Background(), "t0-edge")
	require.NoError(t, err)
	require.Equal(t, 1, listing.Len())
	assert.Equal(t, "192.0.2.1", listing.Results[0].String("neighbor_address"))
}

func TestConfigureBGPNeighbor(t *testing.T) {
	m, f := newFakeManager(t)
	withRoutingLists(f)

	_, err := m.ConfigureBGPNeighbor(context.Background(), BGPNeighborSpec{
		Tier0:               "t0-edge",
		Name:                "isp1",
		Address:             "192.0.2.1",
		RemoteAS:            "64512",
		HoldDownTime:        12,
		KeepAliveTime:       4,
		BFD:                 boolPtr(true),
		BFDInterval:         500,
		SourceAddresses:     []string{"192.0.2.2"},
		GracefulRestartMode: "HELPER_ONLY",
		InPrefixLists:       []string{"rfc1918"},
		OutRouteMaps:        []string{"rm-out"},
	})
	require.NoError(t, err)
	req := f.only(t)
	assert.Equal(t, t0BGP+"/neighbors/isp1", req.URI)
	assert.Equal(t, "BgpNeighborConfig", req.Body["resource_type"])
	assert.Equal(t, "64512", req.Body["remote_as_num"])
	assert.Equal(t, float64(12), req.Body["hold_down_time"])
	assert.Equal(t, map[string]interface{}{"enabled": true, "interval": float64(500)}, req.Body["bfd"])
	assert.Equal(t, "HELPER_ONLY", req.Body["graceful_restart_mode"])
	assert.Equal(t, asJSON(t, []map[string]interface{}{{
		"address_family":    "IPV4",
		"in_route_filters":  []string{"/infra/tier-0s/t0-edge/prefix-lists/rfc1918"},
		"out_route_filters": []string{"/infra/tier-0s/t0-edge/route-maps/rm-out"},
	}}), req.Body["route_filtering"])
}

func TestConfigureBGPNeighborIPv6(t *testing.T) {
	m, f := newFakeManager(t)
	_, err := m.ConfigureBGPNeighbor(context.Background(), BGPNeighborSpec{
		Tier0: "t0-edge", Name: "isp6", Address: "2001:db8::1", RemoteAS: "64512", IPv6: true,
	})
	require.NoError(t, err)
	req := f.only(t)
	assert.Equal(t, "2001:db8::1", req.Body["neighbor_address"])
	assert.Equal(t, []interface{}{map[string]interface{}{"address_family": "IPV6"}}, req.Body["route_filtering"])
	assert.NotContains(t, req.Body, "bfd")
}

func TestConfigureBGPNeighborUnknownFilter(t *testing.T) {
	m, f := newFakeManager(t)
	withRoutingLists(f)
	_, err := m.ConfigureBGPNeighbor(context.Background(), BGPNeighborSpec{
		Tier0: "t0-edge", Name: "isp1", Address: "192.0.2.1", RemoteAS: "64512", InPrefixLists: []string{"nope"},
	})
	assert.True(t, errors.Is(err, util.ErrDependencyMissing))
	assert.Empty(t, f.sent)

	_, err = m.ConfigureBGPNeighbor(context.Background(), BGPNeighborSpec{
		Tier0: "t0-edge", Name: "isp1", Address: "isp.example", RemoteAS: "64512", GracefulRestartMode: "ALWAYS",
	})
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
}

func TestDeleteBGPNeighbor(t *testing.T) {
	m, f := newFakeManager(t)
	require.NoError(t, m.DeleteBGPNeighbor(context.Background(), "t0-edge", "isp1"))
	req := f.only(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, t0BGP+"/neighbors/isp1", req.URI)

	err := m.DeleteBGPNeighbor(context.Background(), "t0-edge", "")
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
}

func TestSetTier0Redistribution(t *testing.T) {
	m, f := newFakeManager(t)
	_, err := m.SetTier0Redistribution(context.Background(), "t0-edge", []string{"tier0_connected", "TIER1_LB_VIP"})
	require.NoError(t, err)
	req := f.only(t)
	assert.Equal(t, PolicyAPI+"/infra/tier-0s/t0-edge/locale-services/default", req.URI)
	assert.Equal(t, []interface{}{"TIER0_CONNECTED", "TIER1_LB_VIP"}, req.Body["route_redistribution_types"])

	_, err = m.SetTier0Redistribution(context.Background(), "t0-edge", []string{"TIER2_MAGIC"})
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
}

func TestParseCommunity(t *testing.T) {
	for in, want := range map[string]string{
		"no_export": "NO_EXPORT", "65001:100": "65001:100", "4200000000:1:2": "4200000000:1:2",
	} {
		got, err := ParseCommunity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"100", "70000:1", "a:b", "1:2:3:4"} {
		_, err := ParseCommunity(bad)
		assert.Error(t, err, bad)
	}
}

func TestConfigureCommunityList(t *testing.T) {
	m, f := newFakeManager(t)
	_, err := m.ConfigureCommunityList(context.Background(), CommunityListSpec{
		Tier0: "t0-edge", Name: "no-export", Communities: []string{"no_export", "65001:100"},
	})
	require.NoError(t, err)
	req := f.only(t)
	assert.Equal(t, PolicyAPI+"/infra/tier-0s/t0-edge/community-lists/no-export", req.URI)
	assert.Equal(t, []interface{}{"NO_EXPORT", "65001:100"}, req.Body["communities"])
}

func TestConfigureRouteMap(t *testing.T) {
	m, f := newFakeManager(t)
	withRoutingLists(f)
	_, err := m.ConfigureRouteMap(context.Background(), RouteMapSpec{
		Tier0: "t0-edge",
		Name:  "rm-out",
		Entries: []string{
			"permit|prefix|rfc1918",
			"DENY|community|no-export",
		},
	})
	require.NoError(t, err)
	req := f.only(t)
	assert.Equal(t, PolicyAPI+"/infra/tier-0s/t0-edge/route-maps/rm-out", req.URI)
	assert.Equal(t, asJSON(t, []map[string]interface{}{
		{"action": "PERMIT", "prefix_list_matches": []string{"/infra/tier-0s/t0-edge/prefix-lists/rfc1918"}},
		{"action": "DENY", "community_list_matches": []map[string]string{
			{"criteria": "/infra/tier-0s/t0-edge/community-lists/no-export", "match_operator": "MATCH_ANY"},
		}},
	}), req.Body["entries"])
}

func TestConfigureRouteMapValidation(t *testing.T) {
	m, f := newFakeManager(t)
	_, err := m.ConfigureRouteMap(context.Background(), RouteMapSpec{
		Tier0: "t0-edge", Name: "rm", Entries: []string{"ALLOW|prefix|a", "PERMIT|aspath|a", "PERMIT|prefix|", "PERMIT|prefix"},
	})
	var ve *util.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 4)
	assert.Zero(t, f.getCount)
}
