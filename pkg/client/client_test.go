package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtron-network/nsxctl/pkg/audit"
	"github.com/newtron-network/nsxctl/pkg/util"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// newTestServer answers every request with the given status and body and
// records what it received.
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var reqs []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reqs = append(reqs, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   b,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func basicConfig(url string) Config {
	return Config{Manager: url, Username: "admin", Password: "secret", Echo: io.Discard}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"basic", Config{Manager: "m", Username: "admin", Password: "p"}, false},
		{"token", Config{Manager: "m", Token: "t"}, false},
		{"cookie", Config{Manager: "m", CookieFile: "c.json"}, false},
		{"no manager", Config{Username: "admin", Password: "p"}, true},
		{"no user", Config{Manager: "m"}, true},
		{"no password", Config{Manager: "m", Username: "admin"}, true},
		{"token and cert", Config{Manager: "m", Token: "t", CertFile: "c.p12"}, true},
		{"cert and cookie", Config{Manager: "m", CertFile: "c.p12", CookieFile: "c.json"}, true},
		{"bad port", Config{Manager: "m", Token: "t", Port: 70000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, util.ErrValidationFailed))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigAuthModeAndBaseURL(t *testing.T) {
	assert.Equal(t, AuthBasic, (&Config{Username: "admin"}).AuthMode())
	assert.Equal(t, AuthRemote, (&Config{Username: "admin@corp.local"}).AuthMode())
	assert.Equal(t, AuthToken, (&Config{Token: "x"}).AuthMode())
	assert.Equal(t, AuthCert, (&Config{CertFile: "a.p12"}).AuthMode())
	assert.Equal(t, AuthCookie, (&Config{CookieFile: "c"}).AuthMode())

	assert.Equal(t, "https://nsx.example.com", (&Config{Manager: "nsx.example.com"}).BaseURL())
	assert.Equal(t, "https://nsx.example.com:8443", (&Config{Manager: "nsx.example.com", Port: 8443}).BaseURL())
	assert.Equal(t, "http://127.0.0.1:1234", (&Config{Manager: "http://127.0.0.1:1234/"}).BaseURL())
}

func TestGetParsesBody(t *testing.T) {
	srv, reqs := newTestServer(t, 200, `{"id":"t1","path":"/infra/tier-1s/t1"}`)
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	rec, err := c.Get(context.Background(), "/policy/api/v1/infra/tier-1s/t1", WithCodes(200))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "t1", rec.ID())

	require.Len(t, *reqs, 1)
	r := (*reqs)[0]
	assert.Equal(t, http.MethodGet, r.Method)
	assert.Equal(t, "/policy/api/v1/infra/tier-1s/t1", r.Path)
	user, pass, ok := (&http.Request{Header: r.Header}).BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", pass)
}

func TestUnexpectedStatus(t *testing.T) {
	srv, _ := newTestServer(t, 404, `{"error_code":600,"error_message":"not found"}`)
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/policy/api/v1/infra/tier-1s/x", WithCodes(200))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.True(t, IsStatus(err, 404))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Body, "not found")
	assert.Contains(t, err.Error(), "return code '404' not in list of expected codes: [200]")
}

func TestAnyStatusAcceptedWithoutCodes(t *testing.T) {
	srv, _ := newTestServer(t, 404, `{"error_code":600}`)
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	rec, err := c.Get(context.Background(), "/policy/api/v1/infra/tier-1s/x")
	require.NoError(t, err)
	assert.True(t, rec.Has("error_code"))
}

func TestEmptyBodyReturnsNil(t *testing.T) {
	srv, _ := newTestServer(t, 200, "")
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	rec, err := c.Delete(context.Background(), "/policy/api/v1/infra/segments/web", WithCodes(200))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPatchSendsJSONBody(t *testing.T) {
	srv, reqs := newTestServer(t, 200, `{}`)
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Patch(context.Background(), "/policy/api/v1/infra/segments/web",
		WithBody(map[string]interface{}{"display_name": "web"}), WithCodes(200))
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodPatch, (*reqs)[0].Method)
	assert.JSONEq(t, `{"display_name":"web"}`, string((*reqs)[0].Body))
	assert.Contains(t, (*reqs)[0].Header.Get("Content-Type"), "application/json")
}

func TestSafeModeWithholdsMutations(t *testing.T) {
	srv, reqs := newTestServer(t, 200, `{"results":[]}`)
	var echo bytes.Buffer
	cfg := basicConfig(srv.URL)
	cfg.Safe = true
	cfg.Verbose = true
	cfg.Echo = &echo
	c, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	for _, call := range []func(context.Context, string, ...RequestOption) (interface{}, error){
		func(ctx context.Context, p string, o ...RequestOption) (interface{}, error) { return c.Post(ctx, p, o...) },
		func(ctx context.Context, p string, o ...RequestOption) (interface{}, error) { return c.Put(ctx, p, o...) },
		func(ctx context.Context, p string, o ...RequestOption) (interface{}, error) { return c.Patch(ctx, p, o...) },
		func(ctx context.Context, p string, o ...RequestOption) (interface{}, error) { return c.Delete(ctx, p, o...) },
	} {
		_, err := call(ctx, "/policy/api/v1/infra/segments/web", WithBody(map[string]string{"a": "b"}))
		require.NoError(t, err)
	}
	assert.Empty(t, *reqs, "no mutating request may reach the server in safe mode")
	assert.Contains(t, echo.String(), "API: PATCH /policy/api/v1/infra/segments/web with data:")
	assert.Contains(t, echo.String(), "API not called - in safe mode")

	_, err = c.Get(ctx, "/policy/api/v1/infra/segments")
	require.NoError(t, err)
	assert.Len(t, *reqs, 1, "GET is sent in safe mode")
	assert.Contains(t, echo.String(), "result code: 200")
}

func TestDryRunOption(t *testing.T) {
	srv, reqs := newTestServer(t, 200, `{}`)
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	rec, err := c.Patch(context.Background(), "/policy/api/v1/infra/domains/default", WithDryRun(true))
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.Empty(t, *reqs)
}

func TestScopeAppliedToRequests(t *testing.T) {
	srv, reqs := newTestServer(t, 200, `{}`)
	cfg := basicConfig(srv.URL)
	cfg.Scope = Scope{Project: "blue"}
	c, err := New(cfg)
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/policy/api/v1/infra/segments")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "/policy/api/v1/infra/segments", WithoutScope())
	require.NoError(t, err)

	require.Len(t, *reqs, 2)
	assert.Equal(t, "/policy/api/v1/orgs/default/projects/blue/infra/segments", (*reqs)[0].Path)
	assert.Equal(t, "/policy/api/v1/infra/segments", (*reqs)[1].Path)
}

func TestAuthHeaders(t *testing.T) {
	t.Run("token", func(t *testing.T) {
		srv, reqs := newTestServer(t, 200, `{}`)
		c, err := New(Config{Manager: srv.URL, Token: "abc", Echo: io.Discard})
		require.NoError(t, err)
		_, err = c.Get(context.Background(), "/api/v1/cluster")
		require.NoError(t, err)
		assert.Equal(t, "Bearer abc", (*reqs)[0].Header.Get("Authorization"))
	})

	t.Run("remote user", func(t *testing.T) {
		srv, reqs := newTestServer(t, 200, `{}`)
		c, err := New(Config{Manager: srv.URL, Username: "ops@corp.local", Password: "pw", Echo: io.Discard})
		require.NoError(t, err)
		_, err = c.Get(context.Background(), "/api/v1/cluster")
		require.NoError(t, err)
		assert.Equal(t, RemoteAuthorization("ops@corp.local", "pw"), (*reqs)[0].Header.Get("Authorization"))
		assert.Equal(t, "Remote b3BzQGNvcnAubG9jYWw6cHc=", RemoteAuthorization("ops@corp.local", "pw"))
	})

	t.Run("cookie", func(t *testing.T) {
		srv, reqs := newTestServer(t, 200, `{}`)
		path := filepath.Join(t.TempDir(), "cookie.json")
		require.NoError(t, os.WriteFile(path, []byte(
			`{"Set-Cookie":"JSESSIONID=ABC123; Path=/; Secure; HttpOnly","X-XSRF-TOKEN":"tok-1","date":"x"}`), 0600))

		c, err := New(Config{Manager: srv.URL, CookieFile: path, Echo: io.Discard})
		require.NoError(t, err)
		_, err = c.Get(context.Background(), "/api/v1/cluster")
		require.NoError(t, err)
		assert.Equal(t, "JSESSIONID=ABC123", (*reqs)[0].Header.Get("Cookie"))
		assert.Equal(t, "tok-1", (*reqs)[0].Header.Get("X-XSRF-TOKEN"))
	})
}

func TestCertSpecValidation(t *testing.T) {
	_, err := New(Config{Manager: "m", CertFile: "only-one.pem"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))

	_, err = New(Config{Manager: "m", CertFile: filepath.Join(t.TempDir(), "missing.p12")})
	assert.Error(t, err)
}

func TestCreateSessionCookie(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/session/create", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Set-Cookie", "JSESSIONID=XYZ; Path=/")
		w.Header().Set("X-XSRF-TOKEN", "xsrf-9")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "session.json")
	sc, err := c.CreateSessionCookie(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "JSESSIONID=XYZ", sc.Cookie())
	assert.Equal(t, []string{"admin"}, form["j_username"])
	assert.Equal(t, []string{"secret"}, form["j_password"])

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadSessionCookie(file)
	require.NoError(t, err)
	assert.Equal(t, "xsrf-9", loaded.XSRFToken)
	assert.Equal(t, sc.SetCookie, loaded.SetCookie)
}

func TestCreateSessionCookieMissingCookie(t *testing.T) {
	srv, _ := newTestServer(t, 200, ``)
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.CreateSessionCookie(context.Background(), filepath.Join(t.TempDir(), "s.json"))
	assert.Error(t, err)
}

func TestLoadSessionCookieErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadSessionCookie(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"date":"x"}`), 0600))
	_, err = LoadSessionCookie(bad)
	assert.True(t, errors.Is(err, util.ErrValidationFailed))
}

func TestVersion(t *testing.T) {
	srv, reqs := newTestServer(t, 200, `{"product_version":"4.1.2.0.0.21761691","node_version":"4.1.2"}`)
	cfg := basicConfig(srv.URL)
	cfg.Scope = Scope{GlobalManager: true}
	c, err := New(cfg)
	require.NoError(t, err)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), v.Version.Major)
	assert.Equal(t, uint64(1), v.Version.Minor)
	assert.Equal(t, uint64(2), v.Version.Patch)
	assert.True(t, v.AtLeast("4.1.0"))
	assert.False(t, v.AtLeast("4.2.0"))
	assert.Equal(t, "/api/v1/node/version", (*reqs)[0].Path)
}

func TestParseProductVersion(t *testing.T) {
	v, err := ParseProductVersion("3.2")
	require.NoError(t, err)
	assert.Equal(t, "3.2.0", v.Version.String())

	_, err = ParseProductVersion("banana")
	assert.Error(t, err)
}

func TestIsLocalManager(t *testing.T) {
	srv, _ := newTestServer(t, 404, `{"error_code":500090,"error_message":"not federated"}`)
	c, err := New(basicConfig(srv.URL))
	require.NoError(t, err)
	lm, err := c.IsLocalManager(context.Background())
	require.NoError(t, err)
	assert.False(t, lm)

	srv2, _ := newTestServer(t, 200, `{"id":"federation-config","site_config_mode":"LOCAL"}`)
	c2, err := New(basicConfig(srv2.URL))
	require.NoError(t, err)
	lm, err = c2.IsLocalManager(context.Background())
	require.NoError(t, err)
	assert.True(t, lm)
}

func TestAuditRecordsMutations(t *testing.T) {
	srv, _ := newTestServer(t, 400, `{"error_message":"bad"}`)
	logger, err := audit.NewFileLogger(filepath.Join(t.TempDir(), "audit.log"), audit.RotationConfig{})
	require.NoError(t, err)
	defer logger.Close()

	cfg := basicConfig(srv.URL)
	cfg.Audit = logger
	c, err := New(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Get(ctx, "/policy/api/v1/infra/segments")
	require.NoError(t, err)
	_, err = c.Patch(ctx, "/policy/api/v1/infra/segments/web", WithCodes(200))
	require.Error(t, err)
	_, err = c.Delete(ctx, "/policy/api/v1/infra/segments/web", WithDryRun(true))
	require.NoError(t, err)

	events, err := logger.Query(audit.Filter{})
	require.NoError(t, err)
	require.Len(t, events, 2, "GET is not audited")

	assert.Equal(t, "PATCH", events[0].Method)
	assert.Equal(t, 400, events[0].Status)
	assert.False(t, events[0].Success)
	assert.Equal(t, "admin", events[0].User)

	assert.Equal(t, "DELETE", events[1].Method)
	assert.True(t, events[1].DryRun)
	assert.True(t, events[1].Success)

	raw, err := json.Marshal(events[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"path":"/policy/api/v1/infra/segments/web"`)
}
