// Package chef exposes a Chef server organization as typed, lazily loaded
// entities.
//
// Collections are read through a Manager. A Manager either enumerates the
// collection directly or runs a search, in which case pages beyond the first
// are fetched concurrently by a small worker pool and handed out in the
// order they complete. A page that cannot be fetched is skipped and reported
// through the diagnostics callback; it never stops the iteration.
//
// Entities fetch their document on first use. Save replaces the whole
// document on the server and drops the cache; Delete reports failure as a
// boolean only.
package chef

import (
	"context"
	"iter"
	"net/url"
	"slices"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ylchen07/chefkit/pkg/session"
)

const (
	// DefaultPageSize is the rows requested per search page
	DefaultPageSize = 1000
	// DefaultFilterPageSize is the rows requested per page by Filter
	DefaultFilterPageSize = 100
	// DefaultWorkers bounds the concurrent page requests
	DefaultWorkers = 4
)

// Requester is the authenticated HTTP collaborator. *session.Session
// implements it.
type Requester interface {
	Get(ctx context.Context, rawURL string, params url.Values) (*session.Response, error)
	Post(ctx context.Context, rawURL string, params url.Values, body any) (*session.Response, error)
	Put(ctx context.Context, rawURL string, body any) (*session.Response, error)
	Delete(ctx context.Context, rawURL string) (*session.Response, error)
}

// Chef is a client bound to one organization
type Chef struct {
	requester    Requester
	baseURL      string
	organization string
	orgURL       string
	indexes      []string

	pageSize       int
	filterPageSize int
	workers        int

	logger       *zap.Logger
	onDiagnostic func(Diagnostic)
}

// Option configures a Chef
type Option func(*Chef)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Chef) { c.logger = l }
}

// WithPageSize sets the rows requested per search page
func WithPageSize(n int) Option {
	return func(c *Chef) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithFilterPageSize sets the rows requested per page by Filter
func WithFilterPageSize(n int) Option {
	return func(c *Chef) {
		if n > 0 {
			c.filterPageSize = n
		}
	}
}

// WithWorkers sets how many search pages may be in flight at once
func WithWorkers(n int) Option {
	return func(c *Chef) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithDiagnostics registers fn to receive skipped pages and item failures.
// fn may be called from several goroutines.
func WithDiagnostics(fn func(Diagnostic)) Option {
	return func(c *Chef) { c.onDiagnostic = fn }
}

// New authenticates against baseURL/organizations/organization. The probe
// also loads the list of search indexes used to validate later searches.
func New(ctx context.Context, requester Requester, baseURL, organization string, opts ...Option) (*Chef, error) {
	c := &Chef{
		requester:      requester,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		organization:   organization,
		pageSize:       DefaultPageSize,
		filterPageSize: DefaultFilterPageSize,
		workers:        DefaultWorkers,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.orgURL = c.baseURL + "/organizations/" + url.PathEscape(organization)

	resp, err := requester.Get(ctx, c.orgURL+"/search", nil)
	if err != nil {
		return nil, transportError(ErrInvalidAuthentication, "probe "+c.orgURL, err)
	}
	if !resp.OK() {
		return nil, errors.WithHintf(
			responseError(ErrInvalidAuthentication, "authenticate for organization "+organization, resp),
			"check the client name and key for %s", c.baseURL)
	}

	indexes, err := parseIndexes(resp)
	if err != nil {
		return nil, transportError(ErrInvalidAuthentication, "read search indexes", err)
	}
	c.indexes = indexes

	c.logger.Debug("authenticated",
		zap.String("organization", organization),
		zap.Strings("indexes", indexes),
	)
	return c, nil
}

func parseIndexes(resp *session.Response) ([]string, error) {
	var byName map[string]any
	if err := resp.JSON(&byName); err == nil {
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		return names, nil
	}

	var list []string
	if err := resp.JSON(&list); err != nil {
		return nil, err
	}
	sort.Strings(list)
	return list, nil
}

// Organization returns the organization name
func (c *Chef) Organization() string { return c.organization }

// OrganizationURL returns the base URL of the organization
func (c *Chef) OrganizationURL() string { return c.orgURL }

// SearchIndexes returns the indexes the server advertised at authentication
func (c *Chef) SearchIndexes() []string { return slices.Clone(c.indexes) }

func (c *Chef) validateIndex(index string) error {
	if !slices.Contains(c.indexes, index) {
		return errors.Wrapf(ErrInvalidSearchIndex, "'%s' is not a valid search index", index)
	}
	return nil
}

// Clients returns the API clients of the organization
func (c *Chef) Clients() *Manager[*Client] {
	return newManager(c, KindClient, "", newClient)
}

// Cookbooks returns the cookbooks of the organization
func (c *Chef) Cookbooks() *Manager[*Cookbook] {
	return newManager(c, KindCookbook, "", newCookbook)
}

// DataBags returns the data bags of the organization
func (c *Chef) DataBags() *Manager[*DataBag] {
	return newManager(c, KindDataBag, "", newDataBag)
}

// Environments returns the environments of the organization
func (c *Chef) Environments() *Manager[*Environment] {
	return newManager(c, KindEnvironment, "", newEnvironment)
}

// Nodes returns the nodes of the organization
func (c *Chef) Nodes() *Manager[*Node] {
	return newManager(c, KindNode, "", newNode)
}

// Roles returns the roles of the organization
func (c *Chef) Roles() *Manager[*Role] {
	return newManager(c, KindRole, "", newRole)
}

// Search queries any advertised index. Indexes other than client,
// environment, node and role are data bags.
func (c *Chef) Search(ctx context.Context, index, query string, projection map[string][]string) (iter.Seq[*Entity], error) {
	kind, parent := KindDataBagItem, index
	switch index {
	case "client":
		kind, parent = KindClient, ""
	case "environment":
		kind, parent = KindEnvironment, ""
	case "node":
		kind, parent = KindNode, ""
	case "role":
		kind, parent = KindRole, ""
	}
	m := newManager(c, kind, parent, func(e *Entity) *Entity { return e })
	return m.Search(ctx, query, projection)
}

// NodeByName scans the node listing for name, ignoring case
func (c *Chef) NodeByName(ctx context.Context, name string) (*Node, error) {
	for node := range c.Nodes().All(ctx) {
		if strings.EqualFold(node.Name(), name) {
			return node, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "node %s", name)
}

// NodeByIPAddress returns the first node whose ipaddress attribute matches
func (c *Chef) NodeByIPAddress(ctx context.Context, address string) (*Node, error) {
	seq, err := c.Nodes().Filter(ctx, "ipaddress:"+escapeQuery(address), nil)
	if err != nil {
		return nil, err
	}
	for node := range seq {
		return node, nil
	}
	return nil, errors.Wrapf(ErrNotFound, "node with address %s", address)
}

// escapeQuery escapes the Lucene characters that appear in names and
// addresses
func escapeQuery(v string) string {
	r := strings.NewReplacer(
		`\`, `\\`, `:`, `\:`, `/`, `\/`, `+`, `\+`, `-`, `\-`,
		`(`, `\(`, `)`, `\)`, `[`, `\[`, `]`, `\]`, `"`, `\"`, ` `, `\ `,
	)
	return r.Replace(v)
}
