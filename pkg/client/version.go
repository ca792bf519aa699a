package client

import (
	"context"
	"net/http"
	"strings"

	"github.com/blang/semver"
	"github.com/pkg/errors"
)

// ManagerVersion is the product version a manager reports.
type ManagerVersion struct {
	Raw     string
	Version semver.Version
}

// AtLeast compares against a "major.minor.patch" version.
func (v ManagerVersion) AtLeast(min string) bool {
	m, err := semver.ParseTolerant(min)
	if err != nil {
		return false
	}
	return v.Version.GTE(m)
}

// ParseProductVersion parses versions such as "4.1.2.0.0.21761691". The
// first three components form the semantic version; the rest are kept as
// build metadata.
func ParseProductVersion(raw string) (ManagerVersion, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	core := parts
	if len(core) > 3 {
		core = parts[:3]
	}
	v, err := semver.ParseTolerant(strings.Join(core, "."))
	if err != nil {
		return ManagerVersion{}, errors.Wrapf(err, "invalid product version %q", raw)
	}
	if len(parts) > 3 {
		v.Build = append(v.Build, strings.Join(parts[3:], "-"))
	}
	return ManagerVersion{Raw: raw, Version: v}, nil
}

// Version reads the manager's product version.
func (c *Client) Version(ctx context.Context) (ManagerVersion, error) {
	rec, err := c.Get(ctx, ManagerPrefix+"/node/version", WithCodes(http.StatusOK), WithoutScope())
	if err != nil {
		return ManagerVersion{}, err
	}
	raw := rec.String("product_version")
	if raw == "" {
		return ManagerVersion{}, errors.New("manager did not report product_version")
	}
	return ParseProductVersion(raw)
}

// IsLocalManager reports whether the manager is a local manager joined to
// a federation.
func (c *Client) IsLocalManager(ctx context.Context) (bool, error) {
	rec, err := c.Get(ctx, PolicyPrefix+"/infra/federation-config",
		WithCodes(http.StatusOK, http.StatusNotFound), WithoutScope(), WithQuiet())
	if err != nil {
		return false, err
	}
	return rec != nil && !rec.Has("error_code"), nil
}
