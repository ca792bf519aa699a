package main

import (
	"context"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/record"
)

// ============================================================================
// Load balancer profiles
// ============================================================================

var appProfileSpec objects.AppProfileSpec

var lbAppProfileConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update an application profile",
	Long: heredoc.Doc(`
		Create or update an HTTP, TCP or UDP application profile. Options
		that do not apply to --type are ignored.

		Examples:
		  nsxctl lb-app-profile configure --name web-app --redirect-to-https --x-forwarded-for insert
		  nsxctl lb-app-profile configure --name dns-app --type UDP --mirror`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appProfileSpec.Name = nameOf("lb-app-profile")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureLBAppProfile(ctx, appProfileSpec)
		})
	},
}

var monitorSpec objects.MonitorSpec

var lbMonitorConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a monitor profile",
	Long: heredoc.Doc(`
		Create or update a health monitor. --type is one of ACTIVE, PASSIVE,
		ICMP, TCP, UDP, HTTP or HTTPS. A --header is "Name: value".

		Examples:
		  nsxctl lb-monitor configure --name web-mon --type HTTP --request-url /healthz --response-code 200
		  nsxctl lb-monitor configure --name passive --type PASSIVE --max-fails 5`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		monitorSpec.Name = nameOf("lb-monitor")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureLBMonitor(ctx, monitorSpec)
		})
	},
}

// sslProfileFlags holds the flags of one ssl profile command. The bool
// toggles are only sent when given.
type sslProfileFlags struct {
	spec         objects.SSLProfileSpec
	sessionCache bool
	preferServer bool
}

func newSSLProfileConfigureCmd(kind string, apply func(m *objects.Manager, ctx context.Context, spec objects.SSLProfileSpec) (*record.Record, error)) *cobra.Command {
	var s sslProfileFlags
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Create or update an ssl profile",
		Long: heredoc.Doc(`
			Create or update an ssl profile. Give either --cipher-group or a
			list of --cipher values.

			Example:
			  nsxctl lb-client-ssl configure --name strict --cipher-group HIGH_SECURITY --protocol TLS_V1_2`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := s.spec
			spec.Name = nameOf(kind)
			if cmd.Flags().Changed("session-cache") {
				spec.SessionCache = &s.sessionCache
			}
			if cmd.Flags().Changed("prefer-server-ciphers") {
				spec.PreferServer = &s.preferServer
			}
			return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
				return apply(m, ctx, spec)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&s.spec.Description, "description", "", "Description")
	f.StringSliceVar(&s.spec.Ciphers, "cipher", nil, "Cipher (repeatable)")
	f.StringVar(&s.spec.CipherGroup, "cipher-group", "", "BALANCED, HIGH_SECURITY, HIGH_COMPATIBILITY or CUSTOM")
	f.StringSliceVar(&s.spec.Protocols, "protocol", nil, "TLS protocol (repeatable)")
	f.BoolVar(&s.sessionCache, "session-cache", true, "Enable session caching")
	if kind == "lb-client-ssl" {
		f.BoolVar(&s.preferServer, "prefer-server-ciphers", true, "Prefer the server cipher order")
		f.IntVar(&s.spec.SessionCacheTimeout, "session-cache-timeout", 0, "Session cache timeout in seconds")
	}
	return cmd
}

var persistenceSpec objects.PersistenceSpec

var lbPersistenceConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Create or update a persistence profile",
	Long: heredoc.Doc(`
		Create or update a source-ip or cookie persistence profile.

		Examples:
		  nsxctl lb-persistence configure --name src --type source --expire 300 --purge
		  nsxctl lb-persistence configure --name jar --type cookie --cookie-name JSESSION --cookie-mode INSERT`),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		persistenceSpec.Name = nameOf("lb-persistence")
		return configure(cmd.Context(), func(ctx context.Context, m *objects.Manager) (*record.Record, error) {
			return m.ConfigureLBPersistence(ctx, persistenceSpec)
		})
	},
}

func init() {
	f := lbAppProfileConfigureCmd.Flags()
	f.StringVar(&appProfileSpec.Description, "description", "", "Description")
	f.StringVar(&appProfileSpec.Type, "type", "HTTP", "HTTP, TCP or UDP")
	f.IntVar(&appProfileSpec.IdleTimeout, "idle-timeout", 0, "Idle timeout in seconds")
	f.IntVar(&appProfileSpec.CloseTimeout, "close-timeout", 0, "TCP close timeout in seconds")
	f.BoolVar(&appProfileSpec.Mirror, "mirror", false, "Mirror flows to the standby (TCP, UDP)")
	f.StringVar(&appProfileSpec.RedirectURL, "redirect-url", "", "Redirect all requests to this URL")
	f.BoolVar(&appProfileSpec.RedirectToHTTPS, "redirect-to-https", false, "Redirect HTTP to HTTPS")
	f.BoolVar(&appProfileSpec.NTLM, "ntlm", false, "Enable NTLM")
	f.IntVar(&appProfileSpec.RequestBodySize, "request-body-size", 0, "Maximum request body size")
	f.IntVar(&appProfileSpec.RequestHeaderSize, "request-header-size", 0, "Maximum request header size")
	f.IntVar(&appProfileSpec.ResponseHeaderSize, "response-header-size", 0, "Maximum response header size")
	f.IntVar(&appProfileSpec.ResponseTimeout, "response-timeout", 0, "Server response timeout in seconds")
	f.StringVar(&appProfileSpec.XForwardedFor, "x-forwarded-for", "", "INSERT or REPLACE")

	f = lbMonitorConfigureCmd.Flags()
	f.StringVar(&monitorSpec.Description, "description", "", "Description")
	f.StringVar(&monitorSpec.Type, "type", "", "ACTIVE, PASSIVE, ICMP, TCP, UDP, HTTP or HTTPS")
	f.IntVar(&monitorSpec.FallCount, "fall-count", 0, "Failures before a member is down")
	f.IntVar(&monitorSpec.RiseCount, "rise-count", 0, "Successes before a member is up")
	f.IntVar(&monitorSpec.Interval, "interval", 0, "Seconds between checks")
	f.IntVar(&monitorSpec.Timeout, "check-timeout", 0, "Check timeout in seconds")
	f.IntVar(&monitorSpec.Port, "monitor-port", 0, "Port to check (default the member port)")
	f.IntVar(&monitorSpec.MaxFails, "max-fails", 0, "Passive monitor failure count")
	f.IntVar(&monitorSpec.DataLength, "data-length", 0, "ICMP data length")
	f.StringVar(&monitorSpec.Send, "send", "", "TCP or UDP payload to send")
	f.StringVar(&monitorSpec.Receive, "receive", "", "TCP or UDP payload expected back")
	f.StringVar(&monitorSpec.RequestMethod, "request-method", "", "HTTP request method")
	f.StringVar(&monitorSpec.RequestURL, "request-url", "", "HTTP request URL")
	f.StringVar(&monitorSpec.RequestVersion, "request-version", "", "HTTP_VERSION_1_0 or HTTP_VERSION_1_1")
	f.StringVar(&monitorSpec.RequestBody, "request-body", "", "HTTP request body")
	f.StringArrayVar(&monitorSpec.RequestHeaders, "header", nil, "HTTP request header \"Name: value\" (repeatable)")
	f.StringVar(&monitorSpec.ResponseBody, "response-body", "", "Expected HTTP response body")
	f.IntSliceVar(&monitorSpec.ResponseCodes, "response-code", nil, "Expected HTTP status code (repeatable)")

	f = lbPersistenceConfigureCmd.Flags()
	f.StringVar(&persistenceSpec.Description, "description", "", "Description")
	f.StringVar(&persistenceSpec.Type, "type", "", "source or cookie")
	f.BoolVar(&persistenceSpec.Shared, "shared", false, "Share persistence across virtual servers")
	f.BoolVar(&persistenceSpec.Purge, "purge", false, "Purge entries when the table is full")
	f.IntVar(&persistenceSpec.Timeout, "expire", 0, "Source persistence timeout in seconds")
	f.BoolVar(&persistenceSpec.Mirror, "mirror", false, "Mirror persistence entries to the standby")
	f.StringVar(&persistenceSpec.CookieDomain, "cookie-domain", "", "Cookie domain")
	f.StringVar(&persistenceSpec.CookieName, "cookie-name", "", "Cookie name")
	f.StringVar(&persistenceSpec.CookiePath, "cookie-path", "", "Cookie path")
	f.StringVar(&persistenceSpec.CookieMode, "cookie-mode", "", "INSERT, PREFIX or REWRITE")
	f.BoolVar(&persistenceSpec.DisableFallback, "no-fallback", false, "Reject requests whose cookie server is down")
	f.BoolVar(&persistenceSpec.DisableGarble, "no-garble", false, "Send the cookie value in clear")
	f.IntVar(&persistenceSpec.MaxIdle, "max-idle", 0, "Cookie maximum idle time in seconds")
	f.IntVar(&persistenceSpec.MaxLife, "max-life", 0, "Cookie maximum lifetime in seconds")

	appCmd, _ := resourceCmd("lb-app-profile")
	appCmd.AddCommand(lbAppProfileConfigureCmd)

	monitorCmd, _ := resourceCmd("lb-monitor")
	monitorCmd.AddCommand(lbMonitorConfigureCmd)

	clientCmd, _ := resourceCmd("lb-client-ssl")
	clientCmd.AddCommand(newSSLProfileConfigureCmd("lb-client-ssl", (*objects.Manager).ConfigureLBClientSSL))

	serverCmd, _ := resourceCmd("lb-server-ssl")
	serverCmd.AddCommand(newSSLProfileConfigureCmd("lb-server-ssl", (*objects.Manager).ConfigureLBServerSSL))

	persistenceCmd, _ := resourceCmd("lb-persistence")
	persistenceCmd.AddCommand(lbPersistenceConfigureCmd)
}
