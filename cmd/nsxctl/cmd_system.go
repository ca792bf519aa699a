package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/blang/semver"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/newtron-network/nsxctl/pkg/cli"
	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// ============================================================================
// Management cluster
// ============================================================================

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Inspect the management cluster",
	Long: heredoc.Doc(`
		Inspect the management cluster.

		Examples:
		  nsxctl cluster status
		  nsxctl cluster nodes -o yaml`),
}

// newClusterViewCmd prints one of the cluster views.
func newClusterViewCmd(view string) *cobra.Command {
	return &cobra.Command{
		Use:   view,
		Short: fmt.Sprintf("Show the cluster %s", view),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
				rec, err := m.Cluster(ctx, view)
				if err != nil {
					return err
				}
				if view == "status" && app.printer.Format == cli.FormatTable {
					return printClusterStatus(rec)
				}
				return app.printer.Record(rec)
			})
		},
	}
}

// printClusterStatus summarizes the cluster status as colored states.
func printClusterStatus(rec *record.Record) error {
	rows := []struct{ name, state string }{
		{"cluster", rec.Child("detailed_cluster_status").String("overall_status")},
		{"control", rec.Child("control_cluster_status").String("status")},
		{"management", rec.Child("mgmt_cluster_status").String("status")},
	}
	for _, r := range rows {
		if r.state == "" {
			continue
		}
		fmt.Fprintf(app.out, "%s %s\n", cli.DotPad(r.name, 20), cli.Status(r.state))
	}
	return nil
}

var clusterNodesBrief bool

var clusterNodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the management cluster nodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			listing, err := m.ClusterNodes(ctx)
			if err != nil {
				return err
			}
			if clusterNodesBrief {
				return app.printer.BriefListing(listing, "")
			}
			return app.printer.Listing(listing)
		})
	},
}

var clusterVIPAddress string

var clusterSetVIPCmd = &cobra.Command{
	Use:   "set-vip",
	Short: "Set the cluster virtual IP",
	Long: heredoc.Doc(`
		Set the virtual IP shared by the management cluster nodes. IPv4 and
		IPv6 addresses are accepted.

		Example:
		  nsxctl cluster set-vip --ip 10.0.0.10`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("ip", clusterVIPAddress); err != nil {
			return err
		}
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.SetClusterVIP(ctx, clusterVIPAddress)
		})
	},
}

var clusterClearVIPCmd = &cobra.Command{
	Use:   "clear-vip",
	Short: "Remove the cluster virtual IP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ClearClusterVIP(ctx)
		})
	},
}

var clusterCertificateCmd = &cobra.Command{
	Use:   "certificate",
	Short: "Show the cluster API certificate",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			rec, err := m.ClusterCertificate(ctx)
			if err != nil {
				return err
			}
			return app.printer.Record(rec)
		})
	},
}

var clusterCertName string

// newClusterCertificateActionCmd sets or clears the certificate presented
// on the cluster virtual IP.
func newClusterCertificateActionCmd(use, short string, apply func(m *objects.Manager, ctx context.Context, name string) (*record.Record, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("certificate", clusterCertName); err != nil {
				return err
			}
			return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
				return apply(m, ctx, clusterCertName)
			})
		},
	}
	cmd.Flags().StringVar(&clusterCertName, "certificate", "", "Certificate name in the trust store")
	return cmd
}

// ============================================================================
// Certificates and global configs
// ============================================================================

var (
	certImportSpec objects.CertificateSpec
	certFile       string
	certKeyFile    string
)

var certImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a PEM certificate",
	Long: heredoc.Doc(`
		Import a PEM certificate chain and, optionally, its private key.

		Example:
		  nsxctl cert import --name web-cert --cert-file web.pem --key-file web.key`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		certImportSpec.Name = nameOf("cert")
		if err := requireFlag("name", certImportSpec.Name, "cert-file", certFile); err != nil {
			return err
		}
		pemData, err := os.ReadFile(certFile)
		if err != nil {
			return fmt.Errorf("reading certificate: %w", err)
		}
		spec := certImportSpec
		spec.PEM = string(pemData)
		if certKeyFile != "" {
			key, err := os.ReadFile(certKeyFile)
			if err != nil {
				return fmt.Errorf("reading private key: %w", err)
			}
			spec.PrivateKey = string(key)
		}
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ImportCertificate(ctx, spec)
		})
	},
}

var globalConfigCmd = &cobra.Command{
	Use:   "global-config",
	Short: "Show or update the switching and routing global configs",
	Long: heredoc.Doc(`
		Show or update the switching and routing global configs. Updates
		read the current config and write it back only when a value
		changes.

		Examples:
		  nsxctl global-config switching
		  nsxctl global-config switching --uplink-mtu 9000
		  nsxctl global-config routing --l3-mode IPV4_AND_IPV6`),
}

var (
	switchingSpec        objects.SwitchingConfigSpec
	switchingReplication bool
	routingSpec          objects.RoutingConfigSpec
)

// localFlagsChanged reports whether any of cmd's own flags was given.
func localFlagsChanged(cmd *cobra.Command) bool {
	changed := false
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		changed = changed || f.Changed
	})
	return changed
}

// printGlobalConfig prints the config after an update, or a note when the
// update had nothing to change.
func printGlobalConfig(rec *record.Record, changed bool, err error) error {
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(app.out, cli.Dim("no change"))
		return nil
	}
	return app.printResult(rec)
}

var globalSwitchingCmd = &cobra.Command{
	Use:   "switching",
	Short: "Show or update SwitchingGlobalConfig",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			if !localFlagsChanged(cmd) {
				rec, err := m.GlobalConfig(ctx, "SwitchingGlobalConfig")
				if err != nil {
					return err
				}
				return app.printer.Record(rec)
			}
			spec := switchingSpec
			if cmd.Flags().Changed("replication") {
				spec.Replication = &switchingReplication
			}
			return printGlobalConfig(m.UpdateSwitchingConfig(ctx, spec))
		})
	},
}

var globalRoutingCmd = &cobra.Command{
	Use:   "routing",
	Short: "Show or update RoutingGlobalConfig",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjects(cmd.Context(), func(ctx context.Context, m *objects.Manager) error {
			if !localFlagsChanged(cmd) {
				rec, err := m.GlobalConfig(ctx, "RoutingGlobalConfig")
				if err != nil {
					return err
				}
				return app.printer.Record(rec)
			}
			return printGlobalConfig(m.UpdateRoutingConfig(ctx, routingSpec))
		})
	},
}

// ============================================================================
// Manager and session
// ============================================================================

var managerCmd = &cobra.Command{
	Use:   "manager",
	Short: "Inspect the manager",
}

var managerVersionRequire string

var managerVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the manager product version",
	Long: heredoc.Doc(`
		Show the manager product version.

		With --require the command fails when the manager is older than
		the given major.minor.patch version, which lets scripts gate on it.
	`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if managerVersionRequire != "" {
			if _, err := semver.ParseTolerant(managerVersionRequire); err != nil {
				return util.NewValidationError(fmt.Sprintf("invalid required version '%s'", managerVersionRequire))
			}
		}
		c, err := app.Client()
		if err != nil {
			return err
		}
		v, err := c.Version(cmd.Context())
		if err != nil {
			return err
		}
		if managerVersionRequire != "" && !v.AtLeast(managerVersionRequire) {
			return fmt.Errorf("manager version %s is older than required %s", v.Version, managerVersionRequire)
		}
		if app.printer.Format != cli.FormatTable {
			return app.printer.Value(map[string]string{
				"product_version": v.Raw,
				"version":         v.Version.String(),
			})
		}
		fmt.Fprintln(app.out, v.Raw)
		return nil
	},
}

var managerFederationCmd = &cobra.Command{
	Use:   "federation",
	Short: "Report whether the manager is a federated local manager",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := app.Client()
		if err != nil {
			return err
		}
		local, err := c.IsLocalManager(cmd.Context())
		if err != nil {
			return err
		}
		if local {
			fmt.Fprintln(app.out, "local manager of a federation")
		} else {
			fmt.Fprintln(app.out, "not a local manager of a federation")
		}
		return nil
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage session cookies",
}

var sessionFilename string

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Log in and save a session cookie",
	Long: heredoc.Doc(`
		Log in with the username and password and save the session cookie
		and XSRF token to --filename. Later invocations authenticate with
		--cookie <filename> instead of a password.

		Example:
		  nsxctl -m nsx.example.com -u admin session create --filename ~/.nsxctl/nsx.cookie
		  nsxctl -m nsx.example.com --cookie ~/.nsxctl/nsx.cookie segment list --brief`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFlag("filename", sessionFilename); err != nil {
			return err
		}
		c, err := app.Client()
		if err != nil {
			return err
		}
		if _, err := c.CreateSessionCookie(cmd.Context(), sessionFilename); err != nil {
			return err
		}
		fmt.Fprintf(app.out, "Session cookie saved to %s\n", sessionFilename)
		return nil
	},
}

// ============================================================================
// Enforcement point actions
// ============================================================================

// newEnforceActionCmd triggers a full sync or reload of the enforcement
// point selected by --enforcement.
func newEnforceActionCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
				return m.EnforcementPointAction(ctx, action)
			})
		},
	}
}

func init() {
	for _, view := range objects.ClusterViews() {
		clusterCmd.AddCommand(newClusterViewCmd(view))
	}
	clusterNodesCmd.Flags().BoolVar(&clusterNodesBrief, "brief", false, "Print name, id and path only")
	clusterSetVIPCmd.Flags().StringVar(&clusterVIPAddress, "ip", "", "Virtual IP address")
	clusterCmd.AddCommand(clusterNodesCmd, clusterSetVIPCmd, clusterClearVIPCmd, clusterCertificateCmd,
		newClusterCertificateActionCmd("set-certificate", "Present a certificate on the cluster virtual IP", (*objects.Manager).SetClusterCertificate),
		newClusterCertificateActionCmd("clear-certificate", "Stop presenting a certificate on the cluster virtual IP", (*objects.Manager).ClearClusterCertificate))

	f := certImportCmd.Flags()
	f.StringVar(&certImportSpec.Description, "description", "", "Description")
	f.StringVar(&certFile, "cert-file", "", "PEM certificate chain")
	f.StringVar(&certKeyFile, "key-file", "", "PEM private key")
	f.StringVar(&certImportSpec.Passphrase, "key-passphrase", "", "Passphrase of the private key")
	certCmd, _ := resourceCmd("cert")
	certCmd.AddCommand(certImportCmd)

	f = globalSwitchingCmd.Flags()
	f.StringVar(&switchingSpec.Name, "display-name", "", "Display name")
	f.StringVar(&switchingSpec.Description, "description", "", "Description")
	f.IntVar(&switchingSpec.UplinkMTU, "uplink-mtu", 0, "Physical uplink MTU")
	f.BoolVar(&switchingReplication, "replication", false, "Enable global replication mode")

	f = globalRoutingCmd.Flags()
	f.StringVar(&routingSpec.Name, "display-name", "", "Display name")
	f.StringVar(&routingSpec.Description, "description", "", "Description")
	f.IntVar(&routingSpec.UplinkMTU, "uplink-mtu", 0, "Logical uplink MTU")
	f.StringVar(&routingSpec.L3ForwardMode, "l3-mode", "", "IPV4_ONLY or IPV4_AND_IPV6")
	globalConfigCmd.AddCommand(globalSwitchingCmd, globalRoutingCmd)

	managerVersionCmd.Flags().StringVar(&managerVersionRequire, "require", "", "Fail unless the manager is at least this version")
	managerCmd.AddCommand(managerVersionCmd, managerFederationCmd)

	sessionCreateCmd.Flags().StringVar(&sessionFilename, "filename", "", "File to write the session cookie to")
	sessionCmd.AddCommand(sessionCreateCmd)

	enforceCmd, _ := resourceCmd("enforce")
	enforceCmd.AddCommand(
		newEnforceActionCmd(objects.ActionFullSync, "Resynchronize the enforcement point"),
		newEnforceActionCmd(objects.ActionReload, "Reload the enforcement point"),
	)
}
