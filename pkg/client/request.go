package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/newtron-network/nsxctl/pkg/audit"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

type requestOptions struct {
	body    interface{}
	codes   []int
	dryRun  *bool
	quiet   bool
	noScope bool
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// WithBody sets the JSON request body.
func WithBody(body interface{}) RequestOption {
	return func(o *requestOptions) { o.body = body }
}

// WithCodes sets the accepted status codes. Without it any status is
// accepted.
func WithCodes(codes ...int) RequestOption {
	return func(o *requestOptions) { o.codes = codes }
}

// WithDryRun overrides safe mode for this request.
func WithDryRun(dryRun bool) RequestOption {
	return func(o *requestOptions) { o.dryRun = &dryRun }
}

// WithQuiet suppresses the verbose echo for this request.
func WithQuiet() RequestOption {
	return func(o *requestOptions) { o.quiet = true }
}

// WithoutScope sends the path exactly as given.
func WithoutScope() RequestOption {
	return func(o *requestOptions) { o.noScope = true }
}

// Get reads a resource or listing page.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*record.Record, error) {
	return c.Do(ctx, http.MethodGet, path, opts...)
}

// Post creates a resource or invokes an action.
func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (*record.Record, error) {
	return c.Do(ctx, http.MethodPost, path, opts...)
}

// Put replaces a resource.
func (c *Client) Put(ctx context.Context, path string, opts ...RequestOption) (*record.Record, error) {
	return c.Do(ctx, http.MethodPut, path, opts...)
}

// Patch creates or updates a policy resource.
func (c *Client) Patch(ctx context.Context, path string, opts ...RequestOption) (*record.Record, error) {
	return c.Do(ctx, http.MethodPatch, path, opts...)
}

// Delete removes a resource.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*record.Record, error) {
	return c.Do(ctx, http.MethodDelete, path, opts...)
}

// Do sends one request and returns the decoded body, or nil when the body
// is empty or the request was withheld.
func (c *Client) Do(ctx context.Context, method, path string, opts ...RequestOption) (*record.Record, error) {
	o := &requestOptions{}
	for _, opt := range opts {
		opt(o)
	}

	api := path
	if !o.noScope {
		api = c.cfg.Scope.Rewrite(path)
	}

	var body []byte
	if o.body != nil {
		b, err := json.Marshal(o.body)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s %s body", method, api)
		}
		body = b
	}

	dryRun := c.cfg.Safe && method != http.MethodGet
	if o.dryRun != nil {
		dryRun = *o.dryRun
	}

	echo := c.cfg.Verbose && !o.quiet
	if echo {
		c.echoRequest(method, api, body)
	}

	var event *audit.Event
	if method != http.MethodGet && c.cfg.Audit != nil {
		event = audit.NewEvent(c.auditUser(), c.cfg.Manager, method, api).WithDryRun(dryRun)
		defer func() {
			if err := c.cfg.Audit.Log(event); err != nil {
				util.Warnf("audit: %v", err)
			}
		}()
	}

	if dryRun {
		if echo {
			fmt.Fprintln(c.echo, "API not called - in safe mode")
		}
		util.WithRequest(method, api).Debug("withheld in safe mode")
		if event != nil {
			event.WithSuccess()
		}
		return nil, nil
	}

	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, api)
	if event != nil {
		event.WithDuration(time.Since(start))
	}
	if err != nil {
		err = errors.Wrapf(err, "%s %s", method, api)
		if event != nil {
			event.WithError(err)
		}
		return nil, err
	}

	code := resp.StatusCode()
	util.WithRequest(method, api).WithField("status", code).Debug("api call")
	if echo {
		fmt.Fprintf(c.echo, "result code: %d\n", code)
	}
	if event != nil {
		event.WithStatus(code)
	}

	if !accepted(code, o.codes) {
		err := &StatusError{
			Method:   method,
			Path:     api,
			Code:     code,
			Expected: o.codes,
			Body:     resp.String(),
		}
		if event != nil {
			event.WithError(err)
		}
		return nil, err
	}

	rec, err := record.Parse(resp.Body())
	if err != nil {
		err = errors.Wrapf(err, "%s %s", method, api)
		if event != nil {
			event.WithError(err)
		}
		return nil, err
	}
	if event != nil {
		event.WithSuccess()
	}
	return rec, nil
}

func (c *Client) echoRequest(method, api string, body []byte) {
	if body == nil {
		fmt.Fprintf(c.echo, "API: %s %s\n", method, api)
		return
	}
	fmt.Fprintf(c.echo, "API: %s %s with data:\n%s\n", method, api, indentJSON(body))
}

func (c *Client) auditUser() string {
	if c.cfg.Username != "" {
		return c.cfg.Username
	}
	return os.Getenv("USER")
}

func accepted(code int, codes []int) bool {
	if len(codes) == 0 {
		return true
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func indentJSON(b []byte) string {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return string(b)
	}
	out, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return string(b)
	}
	return string(out)
}
