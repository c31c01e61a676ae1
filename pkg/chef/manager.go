package chef

import (
	"context"
	"iter"
	"net/url"
	"path"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ylchen07/chefkit/pkg/models"
	"github.com/ylchen07/chefkit/pkg/session"
)

// Manager is a lazily evaluated view over one collection. It holds no
// results: every iteration goes back to the server.
type Manager[T any] struct {
	chef           *Chef
	kind           Kind
	parent         string
	pageSize       int
	filterPageSize int
	workers        int
	wrap           func(*Entity) T
}

func newManager[T any](c *Chef, kind Kind, parent string, wrap func(*Entity) T) *Manager[T] {
	return &Manager[T]{
		chef:           c,
		kind:           kind,
		parent:         parent,
		pageSize:       c.pageSize,
		filterPageSize: c.filterPageSize,
		workers:        c.workers,
		wrap:           wrap,
	}
}

// Kind returns the kind of the managed entities
func (m *Manager[T]) Kind() Kind { return m.kind }

// URL returns the collection URL
func (m *Manager[T]) URL() string { return m.kind.collectionURL(m.chef.orgURL, m.parent) }

// MatchField is the field membership tests search on
func (m *Manager[T]) MatchField() string { return m.kind.spec().matchField }

// WithPageSize returns a copy that requests n rows per page for both
// Search and Filter
func (m *Manager[T]) WithPageSize(n int) *Manager[T] {
	cp := *m
	if n > 0 {
		cp.pageSize = n
		cp.filterPageSize = n
	}
	return &cp
}

// WithWorkers returns a copy that keeps at most n pages in flight
func (m *Manager[T]) WithWorkers(n int) *Manager[T] {
	cp := *m
	if n > 0 {
		cp.workers = n
	}
	return &cp
}

// Get returns the entity called name without contacting the server
func (m *Manager[T]) Get(name string) T {
	return m.wrap(m.chef.newEntity(m.kind, m.parent, name, ""))
}

// All enumerates the collection listing. Entities come without their
// document; it is fetched when first read. A failed listing yields nothing
// and is reported as a diagnostic.
func (m *Manager[T]) All(ctx context.Context) iter.Seq[T] {
	return func(yield func(T) bool) {
		refs, err := m.list(ctx)
		if err != nil {
			m.chef.logger.Warn("listing failed", zap.String("url", m.URL()), zap.Error(err))
			m.chef.report(Diagnostic{Kind: DiagListingFailed, URL: m.URL(), Err: err})
			return
		}
		for _, ref := range refs {
			if !yield(m.wrap(m.chef.newEntity(m.kind, m.parent, ref.Name, ref.URL))) {
				return
			}
		}
	}
}

// Names returns the names in the collection listing
func (m *Manager[T]) Names(ctx context.Context) ([]string, error) {
	refs, err := m.list(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name
	}
	return names, nil
}

func (m *Manager[T]) list(ctx context.Context) ([]models.ListingRef, error) {
	resp, err := m.chef.requester.Get(ctx, m.URL(), nil)
	if err != nil {
		return nil, transportError(ErrInvalidObject, "list "+m.URL(), err)
	}
	if !resp.OK() {
		return nil, responseError(ErrInvalidObject, "list "+m.URL(), resp)
	}
	return parseListing(resp)
}

// parseListing accepts {name: url}, {name: {url: ...}} and [{name, uri}]
func parseListing(resp *session.Response) ([]models.ListingRef, error) {
	var raw any
	if err := resp.JSON(&raw); err != nil {
		return nil, err
	}

	var refs []models.ListingRef
	switch t := raw.(type) {
	case map[string]any:
		for name, v := range t {
			ref := models.ListingRef{Name: name}
			switch val := v.(type) {
			case string:
				ref.URL = val
			case map[string]any:
				ref.URL = firstString(val, "url", "uri")
			}
			refs = append(refs, ref)
		}
		// Objects carry no order; sort so listings are stable
		sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	case []any:
		for _, v := range t {
			obj, ok := v.(map[string]any)
			if !ok {
				continue
			}
			name := firstString(obj, "name")
			if name == "" {
				continue
			}
			refs = append(refs, models.ListingRef{Name: name, URL: firstString(obj, "uri", "url")})
		}
	default:
		return nil, errors.Newf("unexpected listing of type %T", raw)
	}
	return refs, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Search runs query against the kind's index with the manager's page size.
// With a projection the server returns only the named fields, exposed
// through Entity.Partial.
func (m *Manager[T]) Search(ctx context.Context, query string, projection map[string][]string) (iter.Seq[T], error) {
	return m.search(ctx, query, projection, m.pageSize)
}

// Filter is Search with the smaller filter page size
func (m *Manager[T]) Filter(ctx context.Context, query string, projection map[string][]string) (iter.Seq[T], error) {
	return m.search(ctx, query, projection, m.filterPageSize)
}

func (m *Manager[T]) search(ctx context.Context, query string, projection map[string][]string, rows int) (iter.Seq[T], error) {
	index := m.kind.searchIndex(m.parent)
	if index == "" {
		return nil, errors.Wrapf(ErrInvalidSearchIndex, "%s objects cannot be searched", m.kind)
	}
	if err := m.chef.validateIndex(index); err != nil {
		return nil, err
	}

	p := &paginator{
		chef:       m.chef,
		index:      index,
		query:      query,
		projection: projection,
		rows:       rows,
		workers:    m.workers,
	}
	return func(yield func(T) bool) {
		p.each(ctx, func(row map[string]any) bool {
			t, ok := m.fromRow(row)
			if !ok {
				return true
			}
			return yield(t)
		})
	}, nil
}

// fromRow turns a search row into an entity. Rows are full documents,
// {url, data} partial hits, or data bag rows wrapping raw_data.
func (m *Manager[T]) fromRow(row map[string]any) (T, bool) {
	var zero T
	idField := m.kind.spec().idField

	rawURL := firstString(row, "url")
	var doc, partial map[string]any
	var name string

	if data, ok := row["data"].(map[string]any); ok && rawURL != "" {
		partial = data
		name = firstString(data, idField)
		if name == "" {
			name = lastSegment(rawURL)
		}
	} else {
		doc = row
		if raw, ok := row["raw_data"].(map[string]any); ok && m.kind == KindDataBagItem {
			doc = raw
		}
		name = firstString(doc, idField)
	}

	if name == "" {
		m.chef.logger.Debug("search row without a name", zap.String("kind", m.kind.String()))
		return zero, false
	}

	e := m.chef.newEntity(m.kind, m.parent, name, rawURL)
	e.partial = partial
	t := m.wrap(e)
	if doc != nil {
		e.prime(doc)
	}
	return t, true
}

func lastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// Contains reports whether an entity whose match field equals value
// exists, using a one row search that projects only that field. Kinds
// without a search index scan the listing instead.
func (m *Manager[T]) Contains(ctx context.Context, value string) (bool, error) {
	index := m.kind.searchIndex(m.parent)
	if index == "" {
		names, err := m.Names(ctx)
		if err != nil {
			return false, err
		}
		for _, name := range names {
			if name == value {
				return true, nil
			}
		}
		return false, nil
	}
	if err := m.chef.validateIndex(index); err != nil {
		return false, err
	}

	field := m.MatchField()
	p := &paginator{
		chef:       m.chef,
		index:      index,
		query:      field + ":" + escapeQuery(value),
		projection: map[string][]string{field: {field}},
		rows:       1,
		workers:    1,
	}
	pg := p.fetch(ctx, 0)
	if pg.err != nil {
		return false, pg.err
	}
	return len(pg.rows) > 0, nil
}

// Create posts body with the identity field set to name. The server's
// answer is kept on the entity (see Client.ChefKey).
func (m *Manager[T]) Create(ctx context.Context, name string, body map[string]any) (T, error) {
	var zero T

	doc := deepCopy(body)
	if doc == nil {
		doc = map[string]any{}
	}
	doc[m.kind.spec().idField] = name

	op := "create " + m.kind.String() + " " + name
	resp, err := m.chef.requester.Post(ctx, m.URL(), nil, doc)
	if err != nil {
		return zero, transportError(ErrCreateFailed, op, err)
	}
	if !resp.OK() {
		return zero, responseError(ErrCreateFailed, op, resp)
	}

	var receipt map[string]any
	if err := resp.JSON(&receipt); err != nil {
		m.chef.logger.Debug("create returned no document", zap.String("name", name), zap.Error(err))
	}

	e := m.chef.newEntity(m.kind, m.parent, name, firstString(receipt, "uri"))
	e.receipt = receipt
	return m.wrap(e), nil
}

// Delete removes the entity called name, reporting failure as false
func (m *Manager[T]) Delete(ctx context.Context, name string) bool {
	return m.chef.newEntity(m.kind, m.parent, name, "").Delete(ctx)
}
