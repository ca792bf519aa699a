// Package client is the authenticated HTTP session to a manager.
//
// Every operation is a single request: the path is rewritten into the
// configured Scope, the response status is checked against the codes the
// caller accepts, and the JSON body comes back as a record.Record.
// Mutating requests can be withheld (safe mode) and echoed (verbose mode).
package client

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/crypto/pkcs12"

	"github.com/newtron-network/nsxctl/pkg/audit"
	"github.com/newtron-network/nsxctl/pkg/util"
	"github.com/newtron-network/nsxctl/pkg/version"
)

// DefaultTimeout bounds a single request when Config.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// Config describes one manager session.
type Config struct {
	Manager string // host name, address or full base URL
	Port    int

	// Authentication: token, certificate and cookie file are exclusive;
	// basic auth with Username/Password is used when none is set.
	Username       string
	Password       string
	Token          string
	CertFile       string // "bundle.p12" or "cert.pem,key.pem"
	CertPassphrase string
	CookieFile     string

	Insecure bool
	CACert   string
	Timeout  time.Duration

	// Safe withholds every non-GET request.
	Safe bool
	// Verbose echoes requests and result codes to Echo.
	Verbose bool
	Echo    io.Writer

	Scope Scope
	Audit audit.Logger
}

// AuthMode names the authentication a Config selects.
type AuthMode string

const (
	AuthBasic  AuthMode = "basic"
	AuthRemote AuthMode = "remote"
	AuthToken  AuthMode = "token"
	AuthCert   AuthMode = "cert"
	AuthCookie AuthMode = "cookie"
)

// AuthMode returns the authentication the configuration selects.
func (c *Config) AuthMode() AuthMode {
	switch {
	case c.Token != "":
		return AuthToken
	case c.CertFile != "":
		return AuthCert
	case c.CookieFile != "":
		return AuthCookie
	case IsRemoteUser(c.Username):
		return AuthRemote
	default:
		return AuthBasic
	}
}

// Validate checks the configuration before any connection is made.
func (c *Config) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(c.Manager != "", "manager address is required")
	v.Add(c.Port >= 0 && c.Port <= 65535, fmt.Sprintf("port %d out of range", c.Port))

	exclusive := 0
	for _, set := range []bool{c.Token != "", c.CertFile != "", c.CookieFile != ""} {
		if set {
			exclusive++
		}
	}
	v.Add(exclusive <= 1, "only one of token, certificate or session cookie may be given")
	if exclusive == 0 {
		v.Add(c.Username != "", "a username is required for basic authentication")
		v.Add(c.Username == "" || c.Password != "", "a password is required for basic authentication")
	}
	return v.Build()
}

// BaseURL returns the scheme, host and port requests are sent to.
func (c *Config) BaseURL() string {
	base := c.Manager
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	base = strings.TrimRight(base, "/")
	if c.Port != 0 {
		base += ":" + strconv.Itoa(c.Port)
	}
	return base
}

// IsRemoteUser reports whether a username refers to an identity-manager
// account (user@domain), which authenticates with the Remote scheme.
func IsRemoteUser(username string) bool {
	return strings.Contains(username, "@")
}

// Client is an authenticated manager session.
type Client struct {
	cfg  Config
	http *resty.Client
	echo io.Writer
}

// New validates cfg and prepares the HTTP session. No request is sent.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hc := resty.New().
		SetBaseURL(cfg.BaseURL()).
		SetLogger(util.Logger).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", version.UserAgent())

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc.SetTimeout(timeout)

	tc := &tls.Config{
		InsecureSkipVerify: cfg.Insecure, //nolint:gosec // managers commonly run with self-signed certs
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.CACert != "" {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("reading CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CACert)
		}
		tc.RootCAs = pool
	}
	hc.SetTLSClientConfig(tc)

	switch cfg.AuthMode() {
	case AuthToken:
		hc.SetAuthToken(cfg.Token)
	case AuthCert:
		cert, err := loadClientCertificate(cfg.CertFile, cfg.CertPassphrase)
		if err != nil {
			return nil, err
		}
		hc.SetCertificates(cert)
	case AuthCookie:
		sc, err := LoadSessionCookie(cfg.CookieFile)
		if err != nil {
			return nil, err
		}
		hc.SetHeader("Cookie", sc.Cookie())
		hc.SetHeader("X-XSRF-TOKEN", sc.XSRFToken)
	case AuthRemote:
		hc.SetHeader("Authorization", RemoteAuthorization(cfg.Username, cfg.Password))
	default:
		hc.SetBasicAuth(cfg.Username, cfg.Password)
	}

	echo := cfg.Echo
	if echo == nil {
		echo = os.Stdout
	}
	return &Client{cfg: cfg, http: hc, echo: echo}, nil
}

// Config returns the session configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Scope returns the path scope applied to every request.
func (c *Client) Scope() Scope {
	return c.cfg.Scope
}

// RemoteAuthorization builds the Authorization header value for
// identity-manager users.
func RemoteAuthorization(username, password string) string {
	return "Remote " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// loadClientCertificate reads a PKCS#12 bundle or a "cert,key" PEM pair.
func loadClientCertificate(spec, passphrase string) (tls.Certificate, error) {
	if strings.HasSuffix(strings.ToLower(spec), ".p12") || strings.HasSuffix(strings.ToLower(spec), ".pfx") {
		data, err := os.ReadFile(spec)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("reading certificate bundle: %w", err)
		}
		key, cert, err := pkcs12.Decode(data, passphrase)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("decoding certificate bundle %s: %w", spec, err)
		}
		return tls.Certificate{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  key,
			Leaf:        cert,
		}, nil
	}

	parts := util.SplitCommaSeparated(spec)
	if len(parts) != 2 {
		return tls.Certificate{}, util.NewValidationError(
			fmt.Sprintf("certificate %q must be a .p12 bundle or \"cert.pem,key.pem\"", spec))
	}
	cert, err := tls.LoadX509KeyPair(parts[0], parts[1])
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("loading client certificate: %w", err)
	}
	return cert, nil
}
