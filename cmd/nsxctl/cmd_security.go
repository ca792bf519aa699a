package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/record"
)

// ============================================================================
// Domains and groups
// ============================================================================

var domainSpec objects.DomainSpec

var domainConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a domain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		domainSpec.Name = nameOf("domain")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureDomain(ctx, domainSpec)
		})
	},
}

var groupSpec objects.GroupSpec

var groupConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a group",
	Long: heredoc.Doc(`
		Create or update a group in the domain (--domain, default "default").

		Each --expression is one top-level membership group of clauses
		separated by commas. A clause is

		  conjunction:member_type:key:operator:value

		where the conjunction joins the clause to the previous one (empty,
		AND or OR; only AND inside a group). member_type is one of
		VirtualMachine, IPSet, LogicalPort, LogicalSwitch, Segment,
		SegmentPort; operator is EQUALS, CONTAINS, STARTSWITH, ENDSWITH or
		NOTEQUALS.

		Static members follow the expressions in the order segments, VMs,
		groups, VIFs, IP and MAC addresses.

		Examples:
		  nsxctl group configure --name web-vms --expression ":VirtualMachine:Name:STARTSWITH:web"
		  nsxctl group configure --name prod-web \
		      --expression ":VirtualMachine:Tag:EQUALS:env|prod,AND:VirtualMachine:Name:STARTSWITH:web"
		  nsxctl group configure --name mgmt --ip 10.0.0.0/24 --ip 10.0.1.5`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		groupSpec.Name = nameOf("group")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureGroup(ctx, groupSpec)
		})
	},
}

var groupMembersBrief bool

var groupMembersCmd = &cobra.Command{
	Use:   "vm-members",
	Short: "List the VMs that are effective members of a group",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			listing, err := m.GroupVMMembers(ctx, "", nameOf("group"))
			if err != nil {
				return err
			}
			if groupMembersBrief {
				return app.printer.BriefListing(listing, "")
			}
			return app.printer.Listing(listing)
		})
	},
}

// ============================================================================
// Security policies and rules
// ============================================================================

var policySpec objects.PolicySpec

var policyConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a security policy",
	Long: heredoc.Doc(`
		Create or update a distributed firewall policy.

		Example:
		  nsxctl policy configure --name app --category Application --sequence 10`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		policySpec.Name = nameOf("policy")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigurePolicy(ctx, policySpec)
		})
	},
}

var ruleSpec objects.RuleSpec

var ruleConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a rule of a security policy",
	Long: heredoc.Doc(`
		Create or update a rule in the policy given by --policy.

		--src and --dst take group names ("domain:name" for another domain),
		--service takes service names and --scope takes kind:domain:name
		entries with kind group, segment, tier0 or tier1. Each defaults to
		ANY; ANY must be given alone.

		Example:
		  nsxctl rule configure --policy app --name allow-web --src ANY --dst web-vms \
		      --service HTTPS --action ALLOW --logged`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleSpec.Policy = parentOf("rule")
		ruleSpec.Name = nameOf("rule")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureRule(ctx, ruleSpec)
		})
	},
}

// newPositionCmd moves a policy within its category or a rule within its
// policy.
func newPositionCmd(kind string) *cobra.Command {
	var spec objects.PositionSpec
	cmd := &cobra.Command{
		Use:   "position",
		Short: fmt.Sprintf("Move a %s relative to another", kind),
		Long: heredoc.Docf(`
			Move the %s with --operation insert_top, insert_bottom,
			insert_before or insert_after. The last two need --anchor, the
			name of another %s.`, kind, kind),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
				if kind == "rule" {
					spec.Policy = parentOf("rule")
					spec.Rule = nameOf("rule")
					return m.PositionRule(ctx, spec)
				}
				spec.Policy = nameOf("policy")
				return m.PositionPolicy(ctx, spec)
			})
		},
	}
	cmd.Flags().StringVar(&spec.Operation, "operation", objects.InsertTop, "insert_top, insert_bottom, insert_before or insert_after")
	cmd.Flags().StringVar(&spec.Anchor, "anchor", "", fmt.Sprintf("Anchor %s for insert_before and insert_after", kind))
	return cmd
}

// newStatsCmd shows the statistics of a policy or rule.
func newStatsCmd(kind string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: fmt.Sprintf("Show the %s statistics", kind),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				policy, rule := nameOf("policy"), ""
				if kind == "rule" {
					policy, rule = parentOf("rule"), nameOf("rule")
					if err := requireFlag("policy", policy, "name", rule); err != nil {
						return err
					}
				}
				rec, err := m.PolicyStats(ctx, "", policy, rule)
				if err != nil {
					return err
				}
				return app.printer.Record(rec)
			})
		},
	}
}

// ============================================================================
// VM tags
// ============================================================================

var (
	vmTagMode string
	vmTags    []string
)

var vmTagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Update the tags of a virtual machine",
	Long: heredoc.Doc(`
		Update the tags of a virtual machine found by display name. Tags
		are scope:value or a bare value.

		  --mode merge    add the tags to the current ones (default)
		  --mode replace  set exactly the given tags
		  --mode remove   remove the given tags

		Example:
		  nsxctl vm tag --name web-01 --tag env:prod --tag billing`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.TagVM(ctx, nameOf("vm"), strings.ToLower(vmTagMode), vmTags)
		})
	},
}

func init() {
	domainConfigureCmd.Flags().StringVar(&domainSpec.Description, "description", "", "Description")

	f := groupConfigureCmd.Flags()
	f.StringVar(&groupSpec.Description, "description", "", "Description")
	f.StringArrayVar(&groupSpec.Expressions, "expression", nil, "Membership criteria group (repeatable)")
	f.StringSliceVar(&groupSpec.Segments, "segment", nil, "Member segment (repeatable)")
	f.StringSliceVar(&groupSpec.VMs, "vm", nil, "Member virtual machine (repeatable)")
	f.StringSliceVar(&groupSpec.Groups, "group", nil, "Member group, domain:name for another domain (repeatable)")
	f.StringSliceVar(&groupSpec.VIFs, "vif", nil, "Virtual machine whose interfaces are members (repeatable)")
	f.StringSliceVar(&groupSpec.IPs, "ip", nil, "Member IP address, CIDR or range (repeatable)")
	f.StringSliceVar(&groupSpec.MACs, "mac", nil, "Member MAC address (repeatable)")
	f.StringSliceVar(&groupSpec.Tags, "tag", nil, "Tag as scope:value or value (repeatable)")

	groupMembersCmd.Flags().BoolVar(&groupMembersBrief, "brief", false, "Print name, id and path only")

	f = policyConfigureCmd.Flags()
	f.StringVar(&policySpec.Description, "description", "", "Description")
	f.StringVar(&policySpec.Category, "category", "", "Category (default Application)")
	f.BoolVar(&policySpec.Stateless, "stateless", false, "Stateless policy")
	f.BoolVar(&policySpec.TCPStrict, "tcp-strict", false, "Enforce TCP handshake")
	f.IntVar(&policySpec.Sequence, "sequence", 0, "Sequence number")

	f = ruleConfigureCmd.Flags()
	f.StringVar(&ruleSpec.Action, "action", "ALLOW", "ALLOW, DROP, REJECT or JUMP_TO_APPLICATION")
	f.StringVar(&ruleSpec.Direction, "direction", "", "IN, OUT or IN_OUT (default IN_OUT)")
	f.StringVar(&ruleSpec.Protocol, "protocol", "", "IPV4, IPV6 or IPV4_IPV6 (default IPV4_IPV6)")
	f.StringSliceVar(&ruleSpec.Sources, "src", nil, "Source group or ANY (repeatable)")
	f.StringSliceVar(&ruleSpec.Destinations, "dst", nil, "Destination group or ANY (repeatable)")
	f.BoolVar(&ruleSpec.SourcesExcluded, "src-exclude", false, "Negate the sources")
	f.BoolVar(&ruleSpec.DestinationsExcluded, "dst-exclude", false, "Negate the destinations")
	f.StringSliceVar(&ruleSpec.Services, "service", nil, "Service or ANY (repeatable)")
	f.StringSliceVar(&ruleSpec.Scope, "scope", nil, "Applied-to kind:domain:name or ANY (repeatable)")
	f.IntVar(&ruleSpec.Sequence, "sequence", 0, "Sequence number")
	f.BoolVar(&ruleSpec.Disabled, "disabled", false, "Create the rule disabled")
	f.BoolVar(&ruleSpec.Logged, "logged", false, "Log matching traffic")

	vmTagCmd.Flags().StringVar(&vmTagMode, "mode", objects.TagMerge, "merge, replace or remove")
	vmTagCmd.Flags().StringSliceVar(&vmTags, "tag", nil, "Tag as scope:value or value (repeatable)")

	domainCmd, _ := resourceCmd("domain")
	domainCmd.AddCommand(domainConfigureCmd)

	groupCmd, _ := resourceCmd("group")
	groupCmd.AddCommand(groupConfigureCmd, groupMembersCmd)

	policyCmd, _ := resourceCmd("policy")
	policyCmd.AddCommand(policyConfigureCmd, newPositionCmd("policy"), newStatsCmd("policy"))

	ruleCmd, _ := resourceCmd("rule")
	ruleCmd.AddCommand(ruleConfigureCmd, newPositionCmd("rule"), newStatsCmd("rule"))

	vmCmd, _ := resourceCmd("vm")
	vmCmd.AddCommand(vmTagCmd)
}
