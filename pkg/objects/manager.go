package objects

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/newtron-network/nsxctl/pkg/client"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/resolver"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// PolicyAPI prefixes every policy path when it is used as a request path.
const PolicyAPI = "/policy/api/v1"

// API is the part of the client the manager calls.
type API interface {
	resolver.Getter
	Post(ctx context.Context, path string, opts ...client.RequestOption) (*record.Record, error)
	Put(ctx context.Context, path string, opts ...client.RequestOption) (*record.Record, error)
	Patch(ctx context.Context, path string, opts ...client.RequestOption) (*record.Record, error)
	Delete(ctx context.Context, path string, opts ...client.RequestOption) (*record.Record, error)
}

// Manager resolves and configures resources on one manager. Site,
// enforcement point, domain and locale service fill the placeholders of
// the listing APIs.
type Manager struct {
	api API
	res *resolver.Resolver

	Site             string
	EnforcementPoint string
	Domain           string
	Locale           string
}

// Option configures a Manager.
type Option func(*Manager)

// WithSite sets the site name.
func WithSite(site string) Option {
	return func(m *Manager) { m.Site = site }
}

// WithEnforcementPoint sets the enforcement point name.
func WithEnforcementPoint(ep string) Option {
	return func(m *Manager) { m.EnforcementPoint = ep }
}

// WithDomain sets the default domain for groups and policies.
func WithDomain(domain string) Option {
	return func(m *Manager) { m.Domain = domain }
}

// WithResolver replaces the default resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(m *Manager) { m.res = r }
}

// NewManager creates a manager over api. Site, enforcement point, domain
// and locale default to "default".
func NewManager(api API, opts ...Option) *Manager {
	m := &Manager{
		api:              api,
		Site:             "default",
		EnforcementPoint: "default",
		Domain:           "default",
		Locale:           "default",
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.res == nil {
		m.res = resolver.New(api)
	}
	return m
}

// Resolver returns the resolver used for name lookups.
func (m *Manager) Resolver() *resolver.Resolver {
	return m.res
}

// Ref identifies a resource by kind and name or id. Parent names the
// containing resource for kinds that have one; Domain overrides the
// manager's domain for domain-scoped kinds.
type Ref struct {
	Kind   string
	Parent string
	Domain string
	Name   string
	ID     string
}

func (r Ref) label() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

func (m *Manager) kind(name string) (Kind, error) {
	k, ok := LookupKind(name)
	if !ok {
		return Kind{}, util.NewValidationError(fmt.Sprintf("unknown resource kind '%s'", name))
	}
	return k, nil
}

func (m *Manager) domainOr(domain string) string {
	if domain == "" {
		return m.Domain
	}
	return domain
}

// Collection returns the listing endpoint for a kind. Kinds with a parent
// need the parent's name, which is resolved to its path.
func (m *Manager) Collection(ctx context.Context, kind, domain, parent string) (resolver.Collection, error) {
	k, err := m.kind(kind)
	if err != nil {
		return resolver.Collection{}, err
	}
	return m.collection(ctx, k, m.domainOr(domain), parent)
}

func (m *Manager) collection(ctx context.Context, k Kind, domain, parent string) (resolver.Collection, error) {
	c := resolver.Collection{Kind: k.Label, MatchField: k.MatchField}
	if !k.HasParent() {
		c.API = k.expand(m.Site, m.EnforcementPoint, domain)
		return c, nil
	}
	if parent == "" {
		return c, util.NewValidationError(fmt.Sprintf("%s requires a parent %s", k.Label, k.Parent))
	}
	pk, _ := LookupKind(k.Parent)
	pc, err := m.collection(ctx, pk, domain, "")
	if err != nil {
		return c, err
	}
	path, err := m.res.MustPath(ctx, pc, parent, nil)
	if err != nil {
		return c, err
	}
	c.API = PolicyAPI + path + k.Suffix
	return c, nil
}

// List returns every record of a kind. For kinds with a parent and no
// parent given, the children of every parent are listed in parent order.
func (m *Manager) List(ctx context.Context, ref Ref) (*record.Listing, error) {
	k, err := m.kind(ref.Kind)
	if err != nil {
		return nil, err
	}
	domain := m.domainOr(ref.Domain)
	if k.HasParent() && ref.Parent == "" {
		return m.listAll(ctx, k, domain)
	}
	c, err := m.collection(ctx, k, domain, ref.Parent)
	if err != nil {
		return nil, err
	}
	return m.res.List(ctx, c)
}

func (m *Manager) listAll(ctx context.Context, k Kind, domain string) (*record.Listing, error) {
	pk, _ := LookupKind(k.Parent)
	pc, err := m.collection(ctx, pk, domain, "")
	if err != nil {
		return nil, err
	}
	parents, err := m.res.List(ctx, pc)
	if err != nil {
		return nil, err
	}
	all := &record.Listing{}
	for _, p := range parents.Results {
		if p.Path() == "" {
			continue
		}
		c := resolver.Collection{Kind: k.Label, API: PolicyAPI + p.Path() + k.Suffix, MatchField: k.MatchField}
		l, err := m.res.List(ctx, c)
		if err != nil {
			return nil, err
		}
		all.Results = append(all.Results, l.Results...)
		all.Pages += l.Pages
	}
	all.ResultCount = len(all.Results)
	return all, nil
}

// Find returns the record named by ref. An id takes precedence over the
// name. A miss is a *util.NotFoundError.
func (m *Manager) Find(ctx context.Context, ref Ref) (*record.Record, error) {
	k, err := m.kind(ref.Kind)
	if err != nil {
		return nil, err
	}
	if ref.Name == "" && ref.ID == "" {
		return nil, util.NewValidationError(fmt.Sprintf("%s name or id is required", k.Label))
	}
	listing, err := m.List(ctx, ref)
	if err != nil {
		return nil, err
	}
	var rec *record.Record
	if ref.ID != "" {
		rec, err = m.res.FindByID(ctx, resolver.Collection{}, ref.ID, listing)
	} else {
		c := resolver.Collection{MatchField: k.MatchField}
		rec, err = m.res.FindByName(ctx, c, ref.Name, listing)
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, util.NewNotFoundError(k.Label, ref.label())
	}
	return rec, nil
}

// Path returns the policy path of the resource named by ref.
func (m *Manager) Path(ctx context.Context, ref Ref) (string, error) {
	rec, err := m.Find(ctx, ref)
	if err != nil {
		return "", err
	}
	if rec.Path() == "" {
		k, _ := LookupKind(ref.Kind)
		return "", util.NewNotFoundError(k.Label+" path", ref.label())
	}
	return rec.Path(), nil
}

// Delete removes the resource named by ref. Policy resources are deleted
// by path, management-plane resources by id.
func (m *Manager) Delete(ctx context.Context, ref Ref) error {
	k, err := m.kind(ref.Kind)
	if err != nil {
		return err
	}
	rec, err := m.Find(ctx, ref)
	if err != nil {
		return err
	}

	var api string
	switch {
	case k.Manager:
		api = k.API + "/" + rec.ID()
	case rec.Path() != "":
		api = PolicyAPI + rec.Path()
	default:
		return util.NewNotFoundError(k.Label+" path", ref.label())
	}

	util.WithResource(k.Name, ref.label()).Info("deleting")
	_, err = m.api.Delete(ctx, api, client.WithCodes(http.StatusOK))
	return err
}

// RealizedEntities returns the realized entities of a policy resource.
func (m *Manager) RealizedEntities(ctx context.Context, ref Ref) (*record.Record, error) {
	return m.realization(ctx, ref, "/realized-entities")
}

// RealizationStatus returns the consolidated realization status of a
// policy resource.
func (m *Manager) RealizationStatus(ctx context.Context, ref Ref) (*record.Record, error) {
	return m.realization(ctx, ref, "/status")
}

func (m *Manager) realization(ctx context.Context, ref Ref, endpoint string) (*record.Record, error) {
	path, err := m.Path(ctx, ref)
	if err != nil {
		return nil, err
	}
	api := policyInfra + "/realized-state" + endpoint + "?intent_path=" + url.QueryEscape(path)
	return m.api.Get(ctx, api, client.WithCodes(http.StatusOK))
}

// mustPath resolves a name in a kind's collection to its path.
func (m *Manager) mustPath(ctx context.Context, kind, domain, parent, name string) (string, error) {
	k, _ := LookupKind(kind)
	c, err := m.collection(ctx, k, m.domainOr(domain), parent)
	if err != nil {
		return "", err
	}
	return m.res.MustPath(ctx, c, name, nil)
}

// dependency resolves a referenced resource, reporting a miss as a
// dependency of the resource being configured.
func (m *Manager) dependency(ctx context.Context, resource, kind, domain, name string) (string, error) {
	path, err := m.mustPath(ctx, kind, domain, "", name)
	if err != nil {
		var nf *util.NotFoundError
		if errors.As(err, &nf) {
			k, _ := LookupKind(kind)
			return "", util.NewDependencyError(resource, k.Label, name)
		}
		return "", err
	}
	return path, nil
}

func (m *Manager) patch(ctx context.Context, api string, payload interface{}) (*record.Record, error) {
	return m.api.Patch(ctx, api, client.WithBody(payload), client.WithCodes(http.StatusOK))
}
