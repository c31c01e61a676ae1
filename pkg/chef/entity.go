package chef

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/ylchen07/chefkit/pkg/models"
)

// shapePolicy adapts a kind's documents between the server and the cache
type shapePolicy interface {
	// normalize turns a fetched document into the cached data
	normalize(e *Entity, raw map[string]any) (map[string]any, error)
	// prepare turns the merged document into the body of a PUT
	prepare(e *Entity, doc map[string]any) map[string]any
}

type plainShape struct{}

func (plainShape) normalize(_ *Entity, raw map[string]any) (map[string]any, error) { return raw, nil }
func (plainShape) prepare(_ *Entity, doc map[string]any) map[string]any            { return doc }

// cookbookShape unwraps {"<cookbook>": {...}}
type cookbookShape struct{}

func (cookbookShape) normalize(e *Entity, raw map[string]any) (map[string]any, error) {
	inner, ok := raw[e.name].(map[string]any)
	if !ok {
		return nil, errors.Mark(errors.Newf("cookbook %s: response not keyed by name", e.name), ErrInvalidObject)
	}
	return inner, nil
}

func (cookbookShape) prepare(_ *Entity, doc map[string]any) map[string]any { return doc }

// Entity is one remote Chef object. Its document is fetched on first use and
// cached until a write invalidates it.
type Entity struct {
	chef   *Chef
	kind   Kind
	parent string
	name   string
	url    string
	shape  shapePolicy

	mu      sync.Mutex
	data    map[string]any
	partial map[string]any
	receipt map[string]any
}

func (c *Chef) newEntity(kind Kind, parent, name, rawURL string) *Entity {
	if rawURL == "" {
		rawURL = kind.entityURL(c.orgURL, parent, name)
	}
	return &Entity{
		chef:   c,
		kind:   kind,
		parent: parent,
		name:   name,
		url:    rawURL,
		shape:  kind.spec().shape,
	}
}

// Name returns the object name (the id for data bag items)
func (e *Entity) Name() string { return e.name }

// URL returns the canonical URL of the object
func (e *Entity) URL() string { return e.url }

// Kind returns the object kind
func (e *Entity) Kind() Kind { return e.kind }

// Summary describes the entity without fetching it
func (e *Entity) Summary() *models.EntitySummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &models.EntitySummary{
		Name:   e.name,
		Kind:   e.kind.String(),
		URL:    e.url,
		Fields: deepCopy(e.partial),
	}
}

// Partial returns the projected fields of a partial search hit, or nil
func (e *Entity) Partial() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return deepCopy(e.partial)
}

// Loaded reports whether the document is cached
func (e *Entity) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data != nil
}

// Invalidate drops the cached document
func (e *Entity) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = nil
}

// Data returns a copy of the document, fetching it on first use
func (e *Entity) Data(ctx context.Context) (map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadLocked(ctx); err != nil {
		return nil, err
	}
	return deepCopy(e.data), nil
}

func (e *Entity) loadLocked(ctx context.Context) error {
	if e.data != nil {
		return nil
	}

	resp, err := e.chef.requester.Get(ctx, e.url, nil)
	if err != nil {
		return transportError(ErrInvalidObject, "fetch "+e.url, err)
	}
	if !resp.OK() {
		return responseError(ErrInvalidObject, "fetch "+e.url, resp)
	}

	var raw map[string]any
	if err := resp.JSON(&raw); err != nil {
		return transportError(ErrInvalidObject, "fetch "+e.url, err)
	}

	data, err := e.shape.normalize(e, raw)
	if err != nil {
		return err
	}
	e.data = data
	return nil
}

// prime fills the cache from a full search row
func (e *Entity) prime(raw map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := e.shape.normalize(e, raw)
	if err != nil {
		e.chef.logger.Debug("search row not cached",
			zap.String("kind", e.kind.String()),
			zap.String("name", e.name),
			zap.Error(err),
		)
		return
	}
	e.data = data
}

// Save merges delta into a copy of the current document and replaces the
// whole document on the server. The cache is dropped afterwards, so the next
// read fetches what the server stored.
func (e *Entity) Save(ctx context.Context, delta map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.loadLocked(ctx); err != nil {
		return err
	}

	doc := merge(e.data, delta)
	body := e.shape.prepare(e, doc)

	resp, err := e.chef.requester.Put(ctx, e.url, body)
	if err != nil {
		return transportError(ErrInvalidObject, "save "+e.url, err)
	}
	if !resp.OK() {
		return responseError(ErrInvalidObject, "save "+e.url, resp)
	}

	e.data = nil
	return nil
}

// Delete removes the object from the server. It reports failure through the
// return value only.
func (e *Entity) Delete(ctx context.Context) bool {
	resp, err := e.chef.requester.Delete(ctx, e.url)
	if err != nil {
		e.chef.logger.Warn("delete failed", zap.String("url", e.url), zap.Error(err))
		return false
	}
	if !resp.OK() {
		e.chef.logger.Warn("delete failed",
			zap.String("url", e.url),
			zap.Int("status", resp.StatusCode),
			zap.String("response", resp.Text()),
		)
		return false
	}
	e.Invalidate()
	return true
}

// Decode projects the document into out using json tags
func (e *Entity) Decode(ctx context.Context, out any) error {
	data, err := e.Data(ctx)
	if err != nil {
		return err
	}
	return decodeInto(data, out)
}

func decodeInto(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// field reads one top level key of e into a T
func field[T any](ctx context.Context, e *Entity, key string) (T, error) {
	var out T
	data, err := e.Data(ctx)
	if err != nil {
		return out, err
	}
	v, ok := data[key]
	if !ok || v == nil {
		return out, nil
	}
	if err := decodeInto(v, &out); err != nil {
		return out, errors.Wrapf(err, "decode %s", key)
	}
	return out, nil
}

// merge returns a deep copy of base with delta laid over it
func merge(base, delta map[string]any) map[string]any {
	doc := deepCopy(base)
	if doc == nil {
		doc = make(map[string]any, len(delta))
	}
	for k, v := range delta {
		doc[k] = deepCopyValue(v)
	}
	return doc
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = deepCopyValue(x)
		}
		return out
	default:
		return v
	}
}
