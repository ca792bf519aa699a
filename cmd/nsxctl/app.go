package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/newtron-network/nsxctl/pkg/audit"
	"github.com/newtron-network/nsxctl/pkg/cli"
	"github.com/newtron-network/nsxctl/pkg/client"
	"github.com/newtron-network/nsxctl/pkg/objects"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/resolver"
	"github.com/newtron-network/nsxctl/pkg/settings"
)

// newConfig binds the global flags and NSXCTL_* environment variables and
// layers the user settings underneath them. Precedence is flag, then
// environment, then settings, then the flag default.
func newConfig(flags *pflag.FlagSet, s *settings.Settings) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("NSXCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}

	defaults := map[string]interface{}{
		flagManager:     s.Manager,
		flagUser:        s.User,
		flagCookie:      s.CookieFile,
		flagSite:        s.Site,
		flagEnforcement: s.EnforcementPoint,
		flagDomain:      s.Domain,
		flagOrg:         s.Org,
		flagProject:     s.Project,
		flagOutput:      s.Output,
	}
	for key, value := range defaults {
		if value != "" {
			v.SetDefault(key, value)
		}
	}
	if s.Port != 0 {
		v.SetDefault(flagPort, s.Port)
	}
	if s.Insecure {
		v.SetDefault(flagInsecure, true)
	}
	return v, nil
}

// clientConfig builds the session configuration from resolved options.
func clientConfig(v *viper.Viper, echo io.Writer) client.Config {
	return client.Config{
		Manager:        v.GetString(flagManager),
		Port:           v.GetInt(flagPort),
		Username:       v.GetString(flagUser),
		Password:       v.GetString(flagPassword),
		Token:          v.GetString(flagToken),
		CertFile:       v.GetString(flagCert),
		CertPassphrase: v.GetString(flagCertPassphrase),
		CookieFile:     v.GetString(flagCookie),
		Insecure:       v.GetBool(flagInsecure),
		CACert:         v.GetString(flagCACert),
		Timeout:        v.GetDuration(flagTimeout),
		Safe:           v.GetBool(flagSafe),
		Verbose:        v.GetBool(flagVerbose),
		Echo:           echo,
		Scope: client.Scope{
			Global:        v.GetBool(flagGlobal),
			GlobalManager: v.GetBool(flagGlobalManager),
			Org:           v.GetString(flagOrg),
			Project:       v.GetString(flagProject),
		},
	}
}

// App carries what one invocation needs. The manager session is only
// built when a command first asks for it.
type App struct {
	config  *viper.Viper
	out     io.Writer
	errOut  io.Writer
	printer *cli.Printer

	client  *client.Client
	objects *objects.Manager
}

func newApp(v *viper.Viper, out, errOut io.Writer) (*App, error) {
	format, err := cli.ParseFormat(v.GetString(flagOutput))
	if err != nil {
		return nil, err
	}
	return &App{
		config:  v,
		out:     out,
		errOut:  errOut,
		printer: cli.NewPrinter(out, format),
	}, nil
}

// Client returns the manager session, building it on first use.
func (a *App) Client() (*client.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	cfg := clientConfig(a.config, a.out)
	if cfg.AuthMode() == client.AuthBasic || cfg.AuthMode() == client.AuthRemote {
		if cfg.Username != "" && cfg.Password == "" {
			pw, err := promptPassword(a.errOut, cfg.Username)
			if err != nil {
				return nil, err
			}
			cfg.Password = pw
		}
	}
	if logger := audit.DefaultLogger(); logger != nil {
		cfg.Audit = logger
	}
	c, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

// Objects returns the resource manager bound to the session and the
// site, enforcement point and domain flags.
func (a *App) Objects() (*objects.Manager, error) {
	if a.objects != nil {
		return a.objects, nil
	}
	c, err := a.Client()
	if err != nil {
		return nil, err
	}
	a.objects = objects.NewManager(c,
		objects.WithResolver(resolver.New(c)),
		objects.WithSite(a.config.GetString(flagSite)),
		objects.WithEnforcementPoint(a.config.GetString(flagEnforcement)),
		objects.WithDomain(a.config.GetString(flagDomain)),
	)
	return a.objects, nil
}

// Safe reports whether mutating requests are withheld.
func (a *App) Safe() bool {
	return a.config.GetBool(flagSafe)
}

// printResult prints the response of a mutating call. Safe mode returns
// no response.
func (a *App) printResult(rec *record.Record) error {
	if rec == nil {
		if a.Safe() {
			fmt.Fprintln(a.errOut, cli.Yellow("safe mode: request not sent"))
		}
		return nil
	}
	return a.printer.Record(rec)
}

// withObjects runs fn with the resource manager.
func withObjects(ctx context.Context, fn func(ctx context.Context, m *objects.Manager) error) error {
	m, err := app.Objects()
	if err != nil {
		return err
	}
	return fn(ctx, m)
}

// configure runs a mutating objects call and prints its response.
func configure(ctx context.Context, fn func(ctx context.Context, m *objects.Manager) (*record.Record, error)) error {
	return withObjects(ctx, func(ctx context.Context, m *objects.Manager) error {
		rec, err := fn(ctx, m)
		if err != nil {
			return err
		}
		return app.printResult(rec)
	})
}

// promptPassword reads a password from the terminal. Without a terminal
// the session is left to fail validation.
func promptPassword(w io.Writer, user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(w, "Password for %s: ", user)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}
