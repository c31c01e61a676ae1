package chef

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/ylchen07/chefkit/pkg/databagcrypt"
)

// DataBag is a named collection of JSON items. Its document maps item ids
// to their URLs.
type DataBag struct {
	*Entity
}

func newDataBag(e *Entity) *DataBag { return &DataBag{Entity: e} }

// Items returns the items of the bag. A non-empty secret decrypts and
// encrypts them transparently.
func (b *DataBag) Items(secret []byte) *Manager[*DataBagItem] {
	return newManager(b.chef, KindDataBagItem, b.name, func(e *Entity) *DataBagItem {
		return newDataBagItem(e, secret)
	})
}

// ItemNames lists the item ids in the bag
func (b *DataBag) ItemNames(ctx context.Context) ([]string, error) {
	data, err := b.Data(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Item returns the item with the given id, or ErrNotFound when the bag
// does not list it
func (b *DataBag) Item(ctx context.Context, id string, secret []byte) (*DataBagItem, error) {
	data, err := b.Data(ctx)
	if err != nil {
		return nil, err
	}
	rawURL, ok := data[id].(string)
	if !ok || rawURL == "" {
		return nil, errors.Wrapf(ErrNotFound, "item %s in data bag %s", id, b.name)
	}
	return newDataBagItem(b.chef.newEntity(KindDataBagItem, b.name, id, rawURL), secret), nil
}

// CreateItem stores a new item, encrypted when secret is set
func (b *DataBag) CreateItem(ctx context.Context, id string, data map[string]any, secret []byte) (*DataBagItem, error) {
	doc := deepCopy(data)
	if doc == nil {
		doc = map[string]any{}
	}
	doc[databagcrypt.IDField] = id

	items := b.Items(secret)
	if len(secret) > 0 {
		probe := newDataBagItem(b.chef.newEntity(KindDataBagItem, b.name, id, ""), secret)
		doc = probe.prepare(probe.Entity, doc)
	}

	item, err := items.Create(ctx, id, doc)
	if err != nil {
		return nil, err
	}
	b.Invalidate()
	return item, nil
}
