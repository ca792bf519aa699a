package main

import (
	"context"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/record"
)

// nameOf returns the --name selector of a resource command.
func nameOf(kind string) string {
	_, f := resourceCmd(kind)
	return f.name
}

// parentOf returns the parent selector of a resource command.
func parentOf(kind string) string {
	_, f := resourceCmd(kind)
	return f.parent
}

// ============================================================================
// Segments and ports
// ============================================================================

var segmentSpec objects.SegmentSpec

var segmentConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a segment",
	Long: heredoc.Doc(`
		Create or update a segment in the transport zone given by --tz.

		--connect attaches the segment to a tier0 or tier1 gateway. Each
		--gateway CIDR adds a subnet; --dhcp-range values pair with the
		gateways in order. VLAN segments take --vlan ids or ranges.

		Examples:
		  nsxctl segment configure --name web --tz overlay-tz --connect t1 --gateway 10.1.1.1/24
		  nsxctl segment configure --name uplink --tz vlan-tz --vlan 100-110,200`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		segmentSpec.Name = nameOf("segment")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureSegment(ctx, segmentSpec)
		})
	},
}

var portSpec objects.SegmentPortSpec

var portConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a segment port",
	Long: heredoc.Doc(`
		Create or update a port on the segment given by --segment. --vif
		sets the attachment id of the port.

		Example:
		  nsxctl port configure --segment web --name web-01 --vif 5f0e...`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		portSpec.Segment = parentOf("port")
		portSpec.Name = nameOf("port")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureSegmentPort(ctx, portSpec)
		})
	},
}

// ============================================================================
// IP pools and DHCP relays
// ============================================================================

var ippoolSpec objects.IPPoolSpec

var ippoolConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update an IP pool with a static subnet",
	Long: heredoc.Doc(`
		Create or update an IP pool. With --cidr, a static subnet (named by
		--subnet, default the pool name) is configured with the allocation
		--range values and an optional --gateway.

		Example:
		  nsxctl ippool configure --name tep --cidr 172.16.0.0/24 --range 172.16.0.10-172.16.0.50 --gateway 172.16.0.1`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ippoolSpec.Name = nameOf("ippool")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureIPPool(ctx, ippoolSpec)
		})
	},
}

var relaySpec objects.DHCPRelaySpec

var dhcprelayConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a DHCP relay",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		relaySpec.Name = nameOf("dhcprelay")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureDHCPRelay(ctx, relaySpec)
		})
	},
}

// ============================================================================
// Gateways
// ============================================================================

var tier0Spec objects.Tier0Spec

var tier0ConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a tier0 gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tier0Spec.Name = nameOf("tier0")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureTier0(ctx, tier0Spec)
		})
	},
}

var tier1Spec objects.Tier1Spec

var tier1ConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a tier1 gateway",
	Long: heredoc.Doc(`
		Create or update a tier1 gateway, optionally linked to --tier0.

		Example:
		  nsxctl tier1 configure --name t1 --tier0 t0 --advertise TIER1_CONNECTED,TIER1_LB_VIP`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tier1Spec.Name = nameOf("tier1")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureTier1(ctx, tier1Spec)
		})
	},
}

// newEdgeClusterCmd sets the edge cluster of a tier0 or tier1 gateway.
func newEdgeClusterCmd(kind string) *cobra.Command {
	var spec objects.EdgeClusterSpec
	cmd := &cobra.Command{
		Use:   "edge-cluster",
		Short: "Place the gateway on an edge cluster",
		Long: heredoc.Doc(`
			Set the edge cluster of the gateway's locale services. --cluster
			takes a name, id or path. --edge names preferred edge nodes of
			that cluster.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Gateway = nameOf(kind)
			return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
				if kind == "tier0" {
					return m.SetTier0EdgeCluster(ctx, spec)
				}
				return m.SetTier1EdgeCluster(ctx, spec)
			})
		},
	}
	cmd.Flags().StringVar(&spec.Cluster, "cluster", "", "Edge cluster name, id or path")
	cmd.Flags().StringSliceVar(&spec.Edges, "edge", nil, "Preferred edge node (repeatable)")
	return cmd
}

// newInterfacesCmd lists the service interfaces of a gateway.
func newInterfacesCmd(kind string) *cobra.Command {
	var brief bool
	cmd := &cobra.Command{
		Use:   "interfaces",
		Short: "List the gateway's interfaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				listing, err := m.GatewayInterfaces(ctx, kind, nameOf(kind))
				if err != nil {
					return err
				}
				if brief {
					return app.printer.BriefListing(listing, "")
				}
				return app.printer.Listing(listing)
			})
		},
	}
	cmd.Flags().BoolVar(&brief, "brief", false, "Print name, id and path only")
	return cmd
}

// newInterfaceConfigureCmd creates or updates a gateway interface.
func newInterfaceConfigureCmd(kind string) *cobra.Command {
	var spec objects.InterfaceSpec
	cmd := &cobra.Command{
		Use:   "configure-interface",
		Short: "Create or update a gateway interface",
		Long: heredoc.Doc(`
			Create or update an interface of the gateway on --segment with
			one or more --address CIDRs.

			Examples:
			  nsxctl tier1 configure-interface --name t1 --interface svc --segment lb-seg --address 10.9.0.1/24
			  nsxctl tier0 configure-interface --name t0 --interface up1 --segment uplink --address 192.0.2.2/24 --edge edge-1 --mtu 9000`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec.Gateway = nameOf(kind)
			return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
				if kind == "tier0" {
					return m.ConfigureTier0Interface(ctx, spec)
				}
				return m.ConfigureTier1Interface(ctx, spec)
			})
		},
	}
	cmd.Flags().StringVar(&spec.Name, "interface", "", "Interface name")
	cmd.Flags().StringVar(&spec.Segment, "segment", "", "Connected segment")
	cmd.Flags().StringSliceVar(&spec.Addresses, "address", nil, "Interface address in CIDR form (repeatable)")
	if kind == "tier0" {
		cmd.Flags().StringVar(&spec.Edge, "edge", "", "Edge node of the interface")
		cmd.Flags().StringVar(&spec.Type, "type", "", "Interface type: EXTERNAL, SERVICE or LOOPBACK (default EXTERNAL)")
		cmd.Flags().IntVar(&spec.MTU, "mtu", 0, "Interface MTU")
	}
	return cmd
}

var prefixListSpec objects.PrefixListSpec

var prefixlistConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a tier0 prefix list",
	Long: heredoc.Doc(`
		Create or update a prefix list on --tier0. Each --prefix is
		CIDR,GE,LE,ACTION where GE and LE may be empty and ACTION is PERMIT
		or DENY.

		Example:
		  nsxctl prefixlist configure --tier0 t0 --name default-only --prefix 0.0.0.0/0,,,PERMIT`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefixListSpec.Tier0 = parentOf("prefixlist")
		prefixListSpec.Name = nameOf("prefixlist")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigurePrefixList(ctx, prefixListSpec)
		})
	},
}

func init() {
	f := segmentConfigureCmd.Flags()
	f.StringVar(&segmentSpec.Description, "description", "", "Description")
	f.StringVar(&segmentSpec.TransportZone, "tz", "", "Transport zone")
	f.StringVar(&segmentSpec.Connect, "connect", "", "Tier0 or tier1 gateway to connect to")
	f.StringSliceVar(&segmentSpec.Gateways, "gateway", nil, "Gateway address in CIDR form (repeatable)")
	f.StringSliceVar(&segmentSpec.DHCPRanges, "dhcp-range", nil, "DHCP range of the matching gateway subnet (repeatable)")
	f.StringSliceVar(&segmentSpec.VLANs, "vlan", nil, "VLAN id or range (repeatable)")
	f.StringSliceVar(&segmentSpec.Tags, "tag", nil, "Tag as scope:value or value (repeatable)")

	f = portConfigureCmd.Flags()
	f.StringVar(&portSpec.VIF, "vif", "", "Attachment (VIF) id")
	f.StringSliceVar(&portSpec.Tags, "tag", nil, "Tag as scope:value or value (repeatable)")

	f = ippoolConfigureCmd.Flags()
	f.StringVar(&ippoolSpec.Description, "description", "", "Description")
	f.StringVar(&ippoolSpec.Subnet, "subnet", "", "Static subnet name (default the pool name)")
	f.StringVar(&ippoolSpec.CIDR, "cidr", "", "Static subnet CIDR")
	f.StringSliceVar(&ippoolSpec.Ranges, "range", nil, "Allocation range start-end (repeatable)")
	f.StringVar(&ippoolSpec.Gateway, "gateway", "", "Subnet gateway address")
	f.StringSliceVar(&ippoolSpec.Tags, "tag", nil, "Tag as scope:value or value (repeatable)")

	dhcprelayConfigureCmd.Flags().StringSliceVar(&relaySpec.Servers, "server", nil, "DHCP server address (repeatable)")

	f = tier0ConfigureCmd.Flags()
	f.StringVar(&tier0Spec.Description, "description", "", "Description")
	f.StringVar(&tier0Spec.FailoverMode, "failover", "", "Failover mode: PREEMPTIVE or NON_PREEMPTIVE")
	f.StringVar(&tier0Spec.HAMode, "ha-mode", "", "HA mode: ACTIVE_ACTIVE or ACTIVE_STANDBY")
	f.StringVar(&tier0Spec.TransitSubnet, "transit-subnet", "", "Internal transit subnet CIDR")
	f.StringVar(&tier0Spec.DHCPRelay, "dhcp-relay", "", "DHCP relay name")

	f = tier1ConfigureCmd.Flags()
	f.StringVar(&tier1Spec.Description, "description", "", "Description")
	f.StringVar(&tier1Spec.FailoverMode, "failover", "", "Failover mode (default NON_PREEMPTIVE)")
	f.StringVar(&tier1Spec.Tier0, "tier0", "", "Tier0 gateway to link to")
	f.StringVar(&tier1Spec.DHCPRelay, "dhcp-relay", "", "DHCP relay name")
	f.StringSliceVar(&tier1Spec.Advertisements, "advertise", nil, "Route advertisement type (repeatable)")

	f = prefixlistConfigureCmd.Flags()
	f.StringVar(&prefixListSpec.Description, "description", "", "Description")
	f.StringSliceVar(&prefixListSpec.Prefixes, "prefix", nil, "Prefix entry CIDR,GE,LE,ACTION (repeatable)")

	segmentCmd, _ := resourceCmd("segment")
	segmentCmd.AddCommand(segmentConfigureCmd)

	portCmd, _ := resourceCmd("port")
	portCmd.AddCommand(portConfigureCmd)

	ippoolCmd, _ := resourceCmd("ippool")
	ippoolCmd.AddCommand(ippoolConfigureCmd)

	relayCmd, _ := resourceCmd("dhcprelay")
	relayCmd.AddCommand(dhcprelayConfigureCmd)

	prefixlistCmd, _ := resourceCmd("prefixlist")
	prefixlistCmd.AddCommand(prefixlistConfigureCmd)

	tier0Cmd, _ := resourceCmd("tier0")
	tier0Cmd.AddCommand(tier0ConfigureCmd, newEdgeClusterCmd("tier0"), newInterfacesCmd("tier0"), newInterfaceConfigureCmd("tier0"))

	tier1Cmd, _ := resourceCmd("tier1")
	tier1Cmd.AddCommand(tier1ConfigureCmd, newEdgeClusterCmd("tier1"), newInterfacesCmd("tier1"), newInterfaceConfigureCmd("tier1"))
}
