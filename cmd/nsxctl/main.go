// nsxctl - NSX Management Plane Admin CLI
//
// A noun/verb CLI over the NSX policy and manager REST APIs:
//
//	nsxctl [global flags] <resource> <action> [flags]
//	       └──────┬─────┘ └───┬────┘ └──┬───┘
//	          Session      Object     Method
//
// Every resource kind supports list, find, path, delete and realization;
// configurable kinds add configure and kind-specific actions.
//
// Examples:
//
//	nsxctl -m nsx.example.com -u admin segment list --brief
//	nsxctl segment find --name web
//	nsxctl segment configure --name web --tz overlay --connect t1 --gateway 10.1.1.1/24
//	nsxctl group configure --name web-vms --expression ":VirtualMachine:Name:STARTSWITH:web"
//	nsxctl rule configure --policy app --name allow-web --src web-vms --service HTTPS --action ALLOW
//	nsxctl --safe -v tier1 configure --name t1 --tier0 t0
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/newtron-network/nsxctl/pkg/audit"
	"github.com/newtron-network/nsxctl/pkg/settings"
	"github.com/newtron-network/nsxctl/pkg/util"
	"github.com/newtron-network/nsxctl/pkg/version"
)

// Global flag keys, shared by the flag set, viper and NSXCTL_* variables.
const (
	flagManager        = "manager"
	flagPort           = "port"
	flagUser           = "user"
	flagPassword       = "password"
	flagToken          = "token"
	flagCert           = "cert"
	flagCertPassphrase = "cert-passphrase"
	flagCookie         = "cookie"
	flagInsecure       = "insecure"
	flagCACert         = "ca-cert"
	flagTimeout        = "timeout"
	flagSafe           = "safe"
	flagVerbose        = "verbose"
	flagOutput         = "output"
	flagLogFormat      = "log-format"
	flagSite           = "site"
	flagEnforcement    = "enforcement"
	flagDomain         = "domain"
	flagOrg            = "org"
	flagProject        = "project"
	flagGlobal         = "global"
	flagGlobalManager  = "global-manager"
)

// Global state
var (
	userSettings *settings.Settings
	options      *viper.Viper
	app          *App
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "nsxctl",
	Short:             "NSX Management Plane Admin CLI",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: heredoc.Doc(`
		nsxctl configures and inspects NSX through the policy and manager APIs.

		Global flags select the manager and the session; the resource names
		the object kind and the action is the method applied to it.

		  nsxctl [global flags] <resource> <action> [flags]

		Global flags default from ~/.nsxctl/settings.json and from NSXCTL_*
		environment variables (for example NSXCTL_PASSWORD).`),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		options, err = newConfig(cmd.Root().PersistentFlags(), userSettings)
		if err != nil {
			return err
		}

		if err := setupLogging(options, cmd.ErrOrStderr()); err != nil {
			return err
		}

		// Settings and help never talk to a manager
		if isSettingsOrHelp(cmd) {
			return nil
		}

		auditLogger, err := audit.NewFileLogger(userSettings.AuditLogPath(), auditRotation(userSettings))
		if err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		} else {
			audit.SetDefaultLogger(auditLogger)
		}

		app, err = newApp(options, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return err
	},
}

func init() {
	pf := rootCmd.PersistentFlags()

	// Session flags
	pf.StringP(flagManager, "m", "", "Manager host name, address or URL")
	pf.Int(flagPort, 0, "Manager port (default 443)")
	pf.StringP(flagUser, "u", "", "Username for basic authentication")
	pf.StringP(flagPassword, "p", "", "Password (prompted when omitted on a terminal)")
	pf.String(flagToken, "", "Bearer token")
	pf.String(flagCert, "", "Client certificate: bundle.p12 or cert.pem,key.pem")
	pf.String(flagCertPassphrase, "", "Passphrase of the PKCS#12 bundle")
	pf.String(flagCookie, "", "Session cookie file (see 'session create')")
	pf.BoolP(flagInsecure, "k", false, "Skip verification of the manager certificate")
	pf.String(flagCACert, "", "CA bundle used to verify the manager certificate")
	pf.Duration(flagTimeout, 0, "Request timeout (default 60s)")

	// Option flags
	pf.Bool(flagSafe, false, "Safe mode: build mutating requests but do not send them")
	pf.BoolP(flagVerbose, "v", false, "Echo API calls and enable debug logging")
	pf.StringP(flagOutput, "o", "", "Output format: table, json, yaml")
	pf.String(flagLogFormat, "text", "Log format: text or json")

	// Scope flags
	pf.String(flagSite, "default", "Site")
	pf.String(flagEnforcement, "default", "Enforcement point")
	pf.String(flagDomain, "default", "Policy domain")
	pf.String(flagOrg, "", "Multi-tenancy org (default \"default\" with --project)")
	pf.String(flagProject, "", "Multi-tenancy project")
	pf.Bool(flagGlobal, false, "Address the global configuration on a local manager")
	pf.Bool(flagGlobalManager, false, "Address a global manager")

	// ============================================================================
	// Command Groups
	// ============================================================================

	rootCmd.AddGroup(
		&cobra.Group{ID: "network", Title: "Networking:"},
		&cobra.Group{ID: "security", Title: "Security:"},
		&cobra.Group{ID: "lb", Title: "Load Balancing:"},
		&cobra.Group{ID: "system", Title: "System & Inventory:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range resourceCommands() {
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{clusterCmd, globalConfigCmd, managerCmd, sessionCmd} {
		cmd.GroupID = "system"
		rootCmd.AddCommand(cmd)
	}

	for _, cmd := range []*cobra.Command{settingsCmd, auditCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

// isSettingsOrHelp reports whether cmd runs without a manager session.
// Only the top-level command decides: "manager version" needs one.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	top := cmd
	for top.HasParent() && top.Parent().HasParent() {
		top = top.Parent()
	}
	switch top.Name() {
	case "settings", "audit", "help", "version", "completion", "__complete":
		return true
	}
	return false
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd, "nsxctl")
	},
}

func printVersion(cmd *cobra.Command, tool string) {
	out := cmd.OutOrStdout()
	if version.Version == "dev" {
		fmt.Fprintf(out, "%s dev build (use 'make build' for version info)\n", tool)
	} else {
		fmt.Fprintf(out, "%s %s (%s)\n", tool, version.Version, version.GitCommit)
	}
}

// setupLogging points the logger at w. Logging is quiet by default and
// debug with -v.
func setupLogging(v *viper.Viper, w io.Writer) error {
	util.SetLogOutput(w)
	if v.GetBool(flagVerbose) {
		util.SetLogLevel("debug")
	} else {
		util.SetLogLevel("warn")
	}
	switch format := v.GetString(flagLogFormat); format {
	case "", "text":
		util.SetTextFormat()
	case "json":
		util.SetJSONFormat()
	default:
		return util.NewValidationError(fmt.Sprintf("invalid log format '%s': expected text or json", format))
	}
	return nil
}

// auditRotation returns the rotation configured in settings, 10MB x 10
// backups by default.
func auditRotation(s *settings.Settings) audit.RotationConfig {
	rc := audit.RotationConfig{
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxBackups: 10,
	}
	if s.AuditMaxSizeMB > 0 {
		rc.MaxSize = int64(s.AuditMaxSizeMB) * 1024 * 1024
	}
	if s.AuditMaxBackups > 0 {
		rc.MaxBackups = s.AuditMaxBackups
	}
	return rc
}

// requireFlag returns a validation error naming the missing flags.
func requireFlag(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, "--"+pairs[i])
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return util.NewValidationError(fmt.Sprintf("required: %s", strings.Join(missing, ", ")))
}
