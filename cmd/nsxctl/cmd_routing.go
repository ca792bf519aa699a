package main

import (
	"context"
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/newtron-network/nsxctl/pkg/cli"
	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/record"
)

// ============================================================================
// Tier0 BGP
// ============================================================================

var tier0BGPCmd = &cobra.Command{
	Use:   "bgp",
	Short: "Show the BGP configuration of a tier0",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("name", nameOf("tier0")); err != nil {
			return err
		}
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			rec, err := m.Tier0BGP(ctx, nameOf("tier0"))
			if err != nil {
				return err
			}
			return app.printer.Record(rec)
		})
	},
}

var (
	bgpSpec            objects.BGPSpec
	bgpMultipathRelax  bool
	bgpInterSRIBGP     bool
	bgpECMP            bool
	bgpGracefulRestart bool
)

var tier0BGPConfigureCmd = &cobra.Command{
	Use:   "configure-bgp",
	Short: "Update the BGP configuration of a tier0",
	Long: heredoc.Doc(`
		Update the BGP configuration of a tier0. Toggles that are not given
		keep their current value. An --aggregate is CIDR or CIDR:summary-only.

		Example:
		  nsxctl tier0 configure-bgp --name t0 --local-as 65001 --ecmp --aggregate 10.0.0.0/8:true`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("name", nameOf("tier0")); err != nil {
			return err
		}
		spec := bgpSpec
		spec.Tier0 = nameOf("tier0")
		f := cmd.Flags()
		for flag, dst := range map[string]struct {
			val *bool
			set **bool
		}{
			"multipath-relax":  {&bgpMultipathRelax, &spec.MultipathRelax},
			"inter-sr-ibgp":    {&bgpInterSRIBGP, &spec.InterSRIBGP},
			"ecmp":             {&bgpECMP, &spec.ECMP},
			"graceful-restart": {&bgpGracefulRestart, &spec.GracefulRestart},
		} {
			if f.Changed(flag) {
				*dst.set = dst.val
			}
		}
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureTier0BGP(ctx, spec)
		})
	},
}

var tier0NeighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "List the BGP neighbors of a tier0",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("name", nameOf("tier0")); err != nil {
			return err
		}
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			listing, err := m.Tier0BGPNeighbors(ctx, nameOf("tier0"))
			if err != nil {
				return err
			}
			return app.printer.Listing(listing)
		})
	},
}

var (
	neighborSpec objects.BGPNeighborSpec
	neighborBFD  bool
)

var tier0NeighborConfigureCmd = &cobra.Command{
	Use:   "configure-neighbor",
	Short: "Create or update a BGP neighbor of a tier0",
	Long: heredoc.Doc(`
		Create or update a BGP neighbor. Route filters name prefix lists and
		route maps of the same tier0.

		Example:
		  nsxctl tier0 configure-neighbor --name t0 --neighbor isp1 --address 192.0.2.1 \
		      --remote-as 64512 --bfd --in-prefix-list rfc1918 --out-route-map rm-out`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("name", nameOf("tier0"), "neighbor", neighborSpec.Name); err != nil {
			return err
		}
		spec := neighborSpec
		spec.Tier0 = nameOf("tier0")
		if cmd.Flags().Changed("bfd") {
			spec.BFD = &neighborBFD
		}
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureBGPNeighbor(ctx, spec)
		})
	},
}

var neighborDeleteName string

var tier0NeighborDeleteCmd = &cobra.Command{
	Use:   "delete-neighbor",
	Short: "Delete a BGP neighbor of a tier0",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("name", nameOf("tier0"), "neighbor", neighborDeleteName); err != nil {
			return err
		}
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			if err := m.DeleteBGPNeighbor(ctx, nameOf("tier0"), neighborDeleteName); err != nil {
				return err
			}
			if app.Safe() {
				return app.printResult(nil)
			}
			fmt.Fprintf(app.out, "Deleted BGP neighbor %s\n", cli.Bold(neighborDeleteName))
			return nil
		})
	},
}

var redistributionTypes []string

var tier0RedistributionCmd = &cobra.Command{
	Use:   "redistribution",
	Short: "Set the route redistribution types of a tier0",
	Long: heredoc.Doc(`
		Replace the route redistribution types of the tier0 locale.

		Example:
		  nsxctl tier0 redistribution --name t0 --type TIER0_CONNECTED --type TIER1_LB_VIP`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("name", nameOf("tier0")); err != nil {
			return err
		}
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.SetTier0Redistribution(ctx, nameOf("tier0"), redistributionTypes)
		})
	},
}

// ============================================================================
// Community lists and route maps
// ============================================================================

var communitySpec objects.CommunityListSpec

var communityConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a community list",
	Long: heredoc.Doc(`
		Create or update a community list on the tier0 given by --tier0. A
		--community is ASN:value, a large community or a well-known name
		such as NO_EXPORT.

		Example:
		  nsxctl community configure --tier0 t0 --name no-export --community NO_EXPORT --community 65001:100`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		communitySpec.Name = nameOf("community")
		communitySpec.Tier0 = parentOf("community")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureCommunityList(ctx, communitySpec)
		})
	},
}

var routeMapSpec objects.RouteMapSpec

var routemapConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a route map",
	Long: heredoc.Doc(`
		Create or update a route map on the tier0 given by --tier0. Each
		--entry is ACTION|prefix|list;list or ACTION|community|list;list.

		Example:
		  nsxctl routemap configure --tier0 t0 --name rm-out --entry "PERMIT|prefix|rfc1918"`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		routeMapSpec.Name = nameOf("routemap")
		routeMapSpec.Tier0 = parentOf("routemap")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureRouteMap(ctx, routeMapSpec)
		})
	},
}

func init() {
	f := tier0BGPConfigureCmd.Flags()
	f.StringVar(&bgpSpec.LocalAS, "local-as", "", "Local AS number")
	f.StringVar(&bgpSpec.Description, "description", "", "Description")
	f.BoolVar(&bgpMultipathRelax, "multipath-relax", false, "Relax multipath AS path matching")
	f.BoolVar(&bgpInterSRIBGP, "inter-sr-ibgp", false, "Enable iBGP between service routers")
	f.BoolVar(&bgpECMP, "ecmp", false, "Enable ECMP")
	f.BoolVar(&bgpGracefulRestart, "graceful-restart", false, "Enable graceful restart")
	f.StringSliceVar(&bgpSpec.Aggregations, "aggregate", nil, "Route aggregation CIDR[:summary-only] (repeatable)")

	f = tier0NeighborConfigureCmd.Flags()
	f.StringVar(&neighborSpec.Name, "neighbor", "", "Neighbor name")
	f.StringVar(&neighborSpec.Description, "description", "", "Description")
	f.StringVar(&neighborSpec.Address, "address", "", "Neighbor address")
	f.StringVar(&neighborSpec.RemoteAS, "remote-as", "", "Remote AS number")
	f.IntVar(&neighborSpec.HoldDownTime, "hold-down", 0, "Hold down time in seconds")
	f.IntVar(&neighborSpec.KeepAliveTime, "keep-alive", 0, "Keep alive time in seconds")
	f.StringVar(&neighborSpec.Password, "md5-password", "", "MD5 password")
	f.BoolVar(&neighborBFD, "bfd", false, "Enable BFD")
	f.IntVar(&neighborSpec.BFDInterval, "bfd-interval", 0, "BFD interval in milliseconds")
	f.IntVar(&neighborSpec.BFDMultiple, "bfd-multiple", 0, "BFD declare-dead multiple")
	f.StringSliceVar(&neighborSpec.SourceAddresses, "source", nil, "Source address (repeatable)")
	f.StringVar(&neighborSpec.GracefulRestartMode, "graceful-restart", "", "DISABLE, GR_AND_HELPER or HELPER_ONLY")
	f.BoolVar(&neighborSpec.IPv6, "ipv6", false, "Filter the IPV6 address family")
	f.StringSliceVar(&neighborSpec.InPrefixLists, "in-prefix-list", nil, "Inbound prefix list (repeatable)")
	f.StringSliceVar(&neighborSpec.InRouteMaps, "in-route-map", nil, "Inbound route map (repeatable)")
	f.StringSliceVar(&neighborSpec.OutPrefixLists, "out-prefix-list", nil, "Outbound prefix list (repeatable)")
	f.StringSliceVar(&neighborSpec.OutRouteMaps, "out-route-map", nil, "Outbound route map (repeatable)")

	tier0NeighborDeleteCmd.Flags().StringVar(&neighborDeleteName, "neighbor", "", "Neighbor name")
	tier0RedistributionCmd.Flags().StringSliceVar(&redistributionTypes, "type", nil, "Redistribution type (repeatable)")

	f = communityConfigureCmd.Flags()
	f.StringVar(&communitySpec.Description, "description", "", "Description")
	f.StringSliceVar(&communitySpec.Communities, "community", nil, "Community (repeatable)")

	f = routemapConfigureCmd.Flags()
	f.StringVar(&routeMapSpec.Description, "description", "", "Description")
	f.StringArrayVar(&routeMapSpec.Entries, "entry", nil, "Entry ACTION|prefix|lists or ACTION|community|lists (repeatable)")

	tier0Cmd, _ := resourceCmd("tier0")
	tier0Cmd.AddCommand(tier0BGPCmd, tier0BGPConfigureCmd, tier0NeighborsCmd,
		tier0NeighborConfigureCmd, tier0NeighborDeleteCmd, tier0RedistributionCmd)

	communityCmd, _ := resourceCmd("community")
	communityCmd.AddCommand(communityConfigureCmd)

	routemapCmd, _ := resourceCmd("routemap")
	routemapCmd.AddCommand(routemapConfigureCmd)
}
