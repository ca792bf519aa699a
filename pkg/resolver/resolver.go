// Package resolver turns human-readable names into resource records, ids
// and paths by scanning paginated listings.
package resolver

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/newtron-network/nsxctl/pkg/client"
	"github.com/newtron-network/nsxctl/pkg/record"
	"github.com/newtron-network/nsxctl/pkg/util"
)

// DefaultMaxPages bounds a single listing.
const DefaultMaxPages = 1000

// ErrPageLimit is returned when a listing does not terminate within the
// page limit.
var ErrPageLimit = errors.New("listing exceeded page limit")

// Getter is the part of the client the resolver needs.
type Getter interface {
	Get(ctx context.Context, path string, opts ...client.RequestOption) (*record.Record, error)
}

// Collection is a listable endpoint.
type Collection struct {
	// Kind names the resource type in diagnostics.
	Kind string
	// API is the listing path, possibly with a query string.
	API string
	// MatchField is the attribute names are compared against. Empty
	// means display_name.
	MatchField string
}

func (c Collection) matchField() string {
	if c.MatchField == "" {
		return "display_name"
	}
	return c.MatchField
}

// Resolver lists collections and finds records in them.
type Resolver struct {
	api      Getter
	maxPages int
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxPages overrides DefaultMaxPages. Zero or less disables the limit.
func WithMaxPages(n int) Option {
	return func(r *Resolver) { r.maxPages = n }
}

// New creates a resolver over api.
func New(api Getter, opts ...Option) *Resolver {
	r := &Resolver{api: api, maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List fetches every page of a collection and returns the merged results
// in server order.
func (r *Resolver) List(ctx context.Context, c Collection) (*record.Listing, error) {
	listing := &record.Listing{}
	cursor := ""
	for {
		if r.maxPages > 0 && listing.Pages >= r.maxPages {
			return nil, errors.Wrapf(ErrPageLimit, "listing %s after %d pages", c.API, listing.Pages)
		}

		rec, err := r.api.Get(ctx, WithCursor(c.API, cursor), client.WithCodes(http.StatusOK), client.WithQuiet())
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", kindOrAPI(c))
		}
		page := record.AsPage(rec)
		listing.Pages++
		listing.Results = append(listing.Results, page.Results()...)

		total, hasTotal := page.ResultCount()
		if hasTotal {
			listing.ResultCount = total
		}
		next := page.Cursor()
		if lastPage(next, total, hasTotal, len(listing.Results)) {
			util.WithFields(map[string]interface{}{
				"api":     c.API,
				"pages":   listing.Pages,
				"results": len(listing.Results),
			}).Debug("listing complete")
			return listing, nil
		}
		cursor = next
	}
}

// lastPage decides whether a listing is complete. An absent cursor is
// authoritative; the result_count checks cover managers that keep
// returning a cursor on the final page.
func lastPage(cursor string, total int, hasTotal bool, have int) bool {
	switch {
	case cursor == "":
		return true
	case !hasTotal:
		return false
	case total == 0:
		return true
	case have >= total:
		return true
	case cursor == strconv.Itoa(total):
		return true
	}
	return false
}

// WithCursor appends a cursor parameter to an API path.
func WithCursor(api, cursor string) string {
	if cursor == "" {
		return api
	}
	sep := "?"
	if strings.Contains(api, "?") {
		sep = "&"
	}
	return api + sep + "cursor=" + url.QueryEscape(cursor)
}

// FindByName returns the first record whose match field equals name
// exactly, or nil. A non-nil listing is searched instead of fetching.
func (r *Resolver) FindByName(ctx context.Context, c Collection, name string, listing *record.Listing) (*record.Record, error) {
	return r.find(ctx, c, c.matchField(), name, listing)
}

// FindByID returns the record with the given id, or nil.
func (r *Resolver) FindByID(ctx context.Context, c Collection, id string, listing *record.Listing) (*record.Record, error) {
	return r.find(ctx, c, "id", id, listing)
}

func (r *Resolver) find(ctx context.Context, c Collection, field, value string, listing *record.Listing) (*record.Record, error) {
	if listing == nil {
		var err error
		if listing, err = r.List(ctx, c); err != nil {
			return nil, err
		}
	}
	for _, rec := range listing.Results {
		if rec.String(field) == value {
			return rec, nil
		}
	}
	return nil, nil
}

// PathByName returns the path of the named record, or "".
func (r *Resolver) PathByName(ctx context.Context, c Collection, name string, listing *record.Listing) (string, error) {
	rec, err := r.FindByName(ctx, c, name, listing)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.Path(), nil
}

// PathByID returns the path of the record with the given id, or "".
func (r *Resolver) PathByID(ctx context.Context, c Collection, id string, listing *record.Listing) (string, error) {
	rec, err := r.FindByID(ctx, c, id, listing)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.Path(), nil
}

// IDByName returns the id of the named record, or "".
func (r *Resolver) IDByName(ctx context.Context, c Collection, name string, listing *record.Listing) (string, error) {
	rec, err := r.FindByName(ctx, c, name, listing)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.ID(), nil
}

// PathByTypeAndName tries each collection in order and returns the first
// path found along with the collection it came from.
func (r *Resolver) PathByTypeAndName(ctx context.Context, name string, collections ...Collection) (string, Collection, error) {
	for _, c := range collections {
		path, err := r.PathByName(ctx, c, name, nil)
		if err != nil {
			return "", Collection{}, err
		}
		if path != "" {
			return path, c, nil
		}
	}
	return "", Collection{}, nil
}

// MustFind is FindByName that reports a miss as *util.NotFoundError.
func (r *Resolver) MustFind(ctx context.Context, c Collection, name string, listing *record.Listing) (*record.Record, error) {
	rec, err := r.FindByName(ctx, c, name, listing)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, util.NewNotFoundError(kindOrAPI(c), name)
	}
	return rec, nil
}

// MustPath is PathByName that reports a miss, or a record without a path,
// as *util.NotFoundError.
func (r *Resolver) MustPath(ctx context.Context, c Collection, name string, listing *record.Listing) (string, error) {
	rec, err := r.MustFind(ctx, c, name, listing)
	if err != nil {
		return "", err
	}
	if rec.Path() == "" {
		return "", util.NewNotFoundError(kindOrAPI(c)+" path", name)
	}
	return rec.Path(), nil
}

func kindOrAPI(c Collection) string {
	if c.Kind != "" {
		return c.Kind
	}
	return c.API
}
