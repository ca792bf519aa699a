package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/newtron-network/nsxctl/pkg/util"
)

// Session-cookie file keys.
const (
	keySetCookie = "set-cookie"
	keyXSRFToken = "x-xsrf-token"
	keyDate      = "date"
)

// SessionCookie is the content of a session-cookie file: the response
// headers of a session-create call.
type SessionCookie struct {
	SetCookie string
	XSRFToken string
	Date      string
}

// Cookie returns the value to send in the Cookie header: the first token
// of Set-Cookie without its trailing ';'.
func (s *SessionCookie) Cookie() string {
	fields := strings.Fields(s.SetCookie)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimSuffix(fields[0], ";")
}

// LoadSessionCookie reads a session-cookie file. Keys are matched
// case-insensitively.
func LoadSessionCookie(path string) (*SessionCookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session cookie: %w", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing session cookie %s: %w", path, err)
	}

	sc := &SessionCookie{}
	for k, v := range raw {
		s, _ := v.(string)
		switch strings.ToLower(k) {
		case keySetCookie:
			sc.SetCookie = s
		case keyXSRFToken:
			sc.XSRFToken = s
		case keyDate:
			sc.Date = s
		}
	}
	if sc.SetCookie == "" {
		return nil, util.NewValidationError(fmt.Sprintf("session cookie %s has no %s entry", path, keySetCookie))
	}
	return sc, nil
}

// Save writes the cookie file readable only by the owner.
func (s *SessionCookie) Save(path string) error {
	data, err := json.MarshalIndent(map[string]string{
		keySetCookie: s.SetCookie,
		keyXSRFToken: s.XSRFToken,
		keyDate:      s.Date,
	}, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// CreateSessionCookie opens a session on the manager and writes its
// cookie to filename. Identity-manager users authenticate through the
// EULA acceptance endpoint; local users through the session form.
func (c *Client) CreateSessionCookie(ctx context.Context, filename string) (*SessionCookie, error) {
	req := c.http.R().SetContext(ctx)

	var (
		method, path string
	)
	if IsRemoteUser(c.cfg.Username) {
		method, path = http.MethodGet, ManagerPrefix+"/eula/acceptance"
	} else {
		method, path = http.MethodPost, "/api/session/create"
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded").
			SetFormData(map[string]string{
				"j_username": c.cfg.Username,
				"j_password": c.cfg.Password,
			})
	}
	if c.cfg.Verbose {
		fmt.Fprintf(c.echo, "API: %s %s\n", method, path)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	if c.cfg.Verbose {
		fmt.Fprintf(c.echo, "result code: %d\n", resp.StatusCode())
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{
			Method:   method,
			Path:     path,
			Code:     resp.StatusCode(),
			Expected: []int{http.StatusOK},
			Body:     resp.String(),
		}
	}

	sc := &SessionCookie{
		SetCookie: resp.Header().Get("Set-Cookie"),
		XSRFToken: resp.Header().Get("X-Xsrf-Token"),
		Date:      resp.Header().Get("Date"),
	}
	if sc.SetCookie == "" {
		return nil, errors.Errorf("%s %s: response carried no session cookie", method, path)
	}
	if err := sc.Save(filename); err != nil {
		return nil, fmt.Errorf("writing session cookie: %w", err)
	}
	util.WithField("file", filename).Info("session cookie written")
	return sc, nil
}
