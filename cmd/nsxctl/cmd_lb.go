package main

import (
	"context"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/record"
)

var lbSpec objects.LoadBalancerSpec

var lbConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a load balancer service",
	Long: heredoc.Doc(`
		Create or update a load balancer attached to a tier1 gateway.

		Example:
		  nsxctl lb configure --name lb1 --size SMALL --tier1 t1`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lbSpec.Name = nameOf("lb")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureLoadBalancer(ctx, lbSpec)
		})
	},
}

var lbStatusView string

var lbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show load balancer statistics, usage or status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("name", nameOf("lb")); err != nil {
			return err
		}
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			rec, err := m.LoadBalancerStatus(ctx, nameOf("lb"), lbStatusView)
			if err != nil {
				return err
			}
			return app.printer.Record(rec)
		})
	},
}

var poolSpec objects.LBPoolSpec

var lbPoolConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a load balancer pool",
	Long: heredoc.Doc(`
		Create or update a server pool. Members are given either statically
		with --member or dynamically from a group with --member-group.

		A --member is name|ip|state|backup|maxcon|port|weight; only ip is
		required, other fields may be left empty. A --snat-pool entry is
		ip|prefix.

		Examples:
		  nsxctl lb-pool configure --name web-pool --member "web1|10.1.1.11||||443|" --member "|10.1.1.12"
		  nsxctl lb-pool configure --name web-pool --member-group web-vms --member-group-port 443 \
		      --active-monitor default-https-lb-monitor --snat LBSnatAutoMap`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		poolSpec.Name = nameOf("lb-pool")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureLBPool(ctx, poolSpec)
		})
	},
}

var vipSpec objects.VirtualServerSpec

var lbVipConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a load balancer virtual server",
	Long: heredoc.Doc(`
		Create or update a virtual server. --vip-port takes a port or a
		port range.

		Example:
		  nsxctl lb-vip configure --name web-vip --ip 10.9.0.10 --vip-port 443 \
		      --app-profile default-tcp-lb-app-profile --lb lb1 --pool web-pool`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vipSpec.Name = nameOf("lb-vip")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureVirtualServer(ctx, vipSpec)
		})
	},
}

// newLBMemberStatusCmd is the status action shared by pools and virtual
// servers.
func newLBMemberStatusCmd(kind string, fetch func(m *objects.Manager, ctx context.Context, lb, name, view string, realtime bool) (*record.Record, error)) *cobra.Command {
	var s struct {
		lb       string
		view     string
		realtime bool
	}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status or statistics on a load balancer",
		Long: heredoc.Doc(`
			Show the status or statistics of the object on the load balancer
			given by --lb. Values are cached by the manager unless --realtime
			is set.`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("name", nameOf(kind), "lb", s.lb); err != nil {
				return err
			}
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				rec, err := fetch(m, ctx, s.lb, nameOf(kind), s.view, s.realtime)
				if err != nil {
					return err
				}
				return app.printer.Record(rec)
			})
		},
	}
	cmd.Flags().StringVar(&s.lb, "lb", "", "Load balancer service")
	cmd.Flags().StringVar(&s.view, "view", "status", "status or stats")
	cmd.Flags().BoolVar(&s.realtime, "realtime", false, "Query the edge instead of the manager cache")
	return cmd
}

func init() {
	f := lbConfigureCmd.Flags()
	f.StringVar(&lbSpec.Size, "size", "", "SMALL, MEDIUM, LARGE or XLARGE")
	f.StringVar(&lbSpec.Tier1, "tier1", "", "Tier1 gateway to attach to")
	f.StringVar(&lbSpec.LogLevel, "log-level", "", "Error log level (default INFO)")
	f.BoolVar(&lbSpec.Disabled, "disabled", false, "Create the load balancer disabled")

	lbStatusCmd.Flags().StringVar(&lbStatusView, "view", "stats", "stats, usage or status")

	f = lbPoolConfigureCmd.Flags()
	f.StringVar(&poolSpec.Description, "description", "", "Description")
	f.StringVar(&poolSpec.ActiveMonitor, "active-monitor", "", "Active monitor profile")
	f.StringVar(&poolSpec.PassiveMonitor, "passive-monitor", "", "Passive monitor profile")
	f.StringVar(&poolSpec.Algorithm, "algorithm", "", "Balancing algorithm (default ROUND_ROBIN)")
	f.StringVar(&poolSpec.MemberGroup, "member-group", "", "Group providing the members")
	f.StringVar(&poolSpec.MemberGroupIPs, "member-group-ip-version", "", "IPV4, IPV6 or IPV4_IPV6")
	f.IntVar(&poolSpec.MemberGroupMaxIPs, "member-group-max-ips", 0, "Maximum addresses taken per member")
	f.IntVar(&poolSpec.MemberGroupPort, "member-group-port", 0, "Port of the group members")
	f.StringArrayVar(&poolSpec.Members, "member", nil, "Static member name|ip|state|backup|maxcon|port|weight (repeatable)")
	f.IntVar(&poolSpec.MinActive, "min-active", 0, "Minimum active members")
	f.StringVar(&poolSpec.SNATType, "snat", "", "LBSnatAutoMap, LBSnatIpPool or LBSnatDisabled")
	f.StringSliceVar(&poolSpec.SNATPool, "snat-pool", nil, "SNAT address ip|prefix (repeatable)")
	f.BoolVar(&poolSpec.TCPMultiplexing, "tcp-multiplexing", false, "Enable TCP multiplexing")
	f.IntVar(&poolSpec.TCPMultiplexCount, "tcp-multiplexing-count", 0, "Connections kept for multiplexing")

	f = lbVipConfigureCmd.Flags()
	f.StringVar(&vipSpec.Description, "description", "", "Description")
	f.StringVar(&vipSpec.IPAddress, "ip", "", "Virtual IP address")
	f.StringSliceVar(&vipSpec.Ports, "vip-port", nil, "Port or port range (repeatable)")
	f.StringVar(&vipSpec.AppProfile, "app-profile", "", "Application profile")
	f.StringVar(&vipSpec.Persistence, "persistence", "", "Persistence profile")
	f.StringVar(&vipSpec.LoadBalancer, "lb", "", "Load balancer service")
	f.StringVar(&vipSpec.Pool, "pool", "", "Server pool")
	f.StringVar(&vipSpec.SorryPool, "sorry-pool", "", "Pool used when the server pool is down")
	f.BoolVar(&vipSpec.AccessLog, "access-log", false, "Enable access logging")
	f.BoolVar(&vipSpec.Disabled, "disabled", false, "Create the virtual server disabled")
	f.IntVar(&vipSpec.MaxConcurrentConns, "max-connections", 0, "Maximum concurrent connections")
	f.IntVar(&vipSpec.MaxNewConnRate, "max-new-connection-rate", 0, "Maximum new connections per second")

	lbCmd, _ := resourceCmd("lb")
	lbCmd.AddCommand(lbConfigureCmd, lbStatusCmd)

	poolCmd, _ := resourceCmd("lb-pool")
	poolCmd.AddCommand(lbPoolConfigureCmd, newLBMemberStatusCmd("lb-pool", (*objects.Manager).LBPoolStatus))

	vipCmd, _ := resourceCmd("lb-vip")
	vipCmd.AddCommand(lbVipConfigureCmd, newLBMemberStatusCmd("lb-vip", (*objects.Manager).VirtualServerStatus))
}
