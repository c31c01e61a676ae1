package chef

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ylchen07/chefkit/pkg/databagcrypt"
)

// DataBagItem is one item of a data bag. With a secret, version 3 items are
// decrypted when read and every field except id is encrypted when saved.
// Version 1 and 2 items are returned as stored.
type DataBagItem struct {
	*Entity

	// guarded by Entity.mu
	cipher   *databagcrypt.Cipher
	secret   []byte
	status   databagcrypt.Status
	envelope map[string]any
	// fields the last decrypt left out of data
	undecrypted []string
}

func newDataBagItem(e *Entity, secret []byte) *DataBagItem {
	item := &DataBagItem{Entity: e}
	item.secret, item.cipher = item.newCipher(secret)
	e.shape = item
	return item
}

func (i *DataBagItem) newCipher(secret []byte) ([]byte, *databagcrypt.Cipher) {
	if len(secret) == 0 {
		return nil, nil
	}
	secret = append([]byte(nil), secret...)
	return secret, databagcrypt.New(secret, databagcrypt.WithLogger(i.chef.logger))
}

// Secret returns the configured secret, or nil
func (i *DataBagItem) Secret() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]byte(nil), i.secret...)
}

// SetSecret replaces the secret. A cached encrypted item is decrypted again
// from its stored envelope without a new request.
func (i *DataBagItem) SetSecret(secret []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.secret, i.cipher = i.newCipher(secret)
	if i.envelope != nil {
		data, _ := i.normalize(i.Entity, deepCopy(i.envelope))
		i.data = data
	}
}

// Status reports how the stored item is encoded
func (i *DataBagItem) Status(ctx context.Context) (databagcrypt.Status, error) {
	if _, err := i.Data(ctx); err != nil {
		return databagcrypt.Plaintext, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status, nil
}

// Encrypted reports whether the stored item uses version 3 envelopes
func (i *DataBagItem) Encrypted(ctx context.Context) (bool, error) {
	st, err := i.Status(ctx)
	return st == databagcrypt.Encrypted, err
}

// Envelope returns the item as stored when it is encrypted, or nil
func (i *DataBagItem) Envelope(ctx context.Context) (map[string]any, error) {
	if _, err := i.Data(ctx); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return deepCopy(i.envelope), nil
}

// Value returns a single field of the (decrypted) item
func (i *DataBagItem) Value(ctx context.Context, name string) (any, bool, error) {
	data, err := i.Data(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := data[name]
	return v, ok, nil
}

// Undecrypted lists the fields the last read could not decrypt
func (i *DataBagItem) Undecrypted(ctx context.Context) ([]string, error) {
	if _, err := i.Data(ctx); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.undecrypted...), nil
}

// Save merges delta into the item and stores it, encrypting when a secret
// is set. With a secret, an item is only rewritten when every field was
// decrypted: unsupported formats and fields that failed to decrypt are
// missing from the cached data and would be lost by the full PUT.
func (i *DataBagItem) Save(ctx context.Context, delta map[string]any) error {
	st, err := i.Status(ctx)
	if err != nil {
		return err
	}
	i.mu.Lock()
	withCipher := i.cipher != nil
	undecrypted := append([]string(nil), i.undecrypted...)
	i.mu.Unlock()

	if !withCipher {
		return i.Entity.Save(ctx, delta)
	}
	if st == databagcrypt.Unsupported {
		return errors.Mark(
			errors.Newf("data bag item %s/%s uses an unsupported encryption version", i.parent, i.name),
			ErrInvalidObject)
	}
	if len(undecrypted) > 0 {
		return errors.WithHint(
			errors.Mark(
				errors.Newf("data bag item %s/%s: fields %v could not be decrypted", i.parent, i.name, undecrypted),
				ErrInvalidObject),
			"check that the data bag secret matches the one the item was encrypted with")
	}
	return i.Entity.Save(ctx, delta)
}

func (i *DataBagItem) normalize(_ *Entity, raw map[string]any) (map[string]any, error) {
	i.status = databagcrypt.Detect(raw)
	i.envelope = nil
	i.undecrypted = nil

	switch i.status {
	case databagcrypt.Encrypted:
		i.envelope = deepCopy(raw)
		if i.cipher == nil {
			return raw, nil
		}
		data, errs := i.cipher.Decrypt(raw)
		for _, fe := range errs {
			if fe.Field != databagcrypt.IDField {
				i.undecrypted = append(i.undecrypted, fe.Field)
			}
			i.chef.report(Diagnostic{Kind: DiagDecryptFailed, URL: i.url, Index: i.parent, Field: fe.Field, Err: fe.Err})
		}
		sort.Strings(i.undecrypted)
		return data, nil
	case databagcrypt.Unsupported:
		i.envelope = deepCopy(raw)
		i.chef.logger.Info("data bag item uses encryption version 1 or 2, not decrypting",
			zap.String("bag", i.parent),
			zap.String("item", i.name),
		)
		i.chef.report(Diagnostic{Kind: DiagUnsupportedEnvelope, URL: i.url, Index: i.parent})
	}
	return raw, nil
}

func (i *DataBagItem) prepare(_ *Entity, doc map[string]any) map[string]any {
	if i.cipher == nil {
		return doc
	}
	out, errs := i.cipher.Encrypt(doc)
	for _, fe := range errs {
		i.chef.report(Diagnostic{Kind: DiagEncryptFailed, URL: i.url, Index: i.parent, Field: fe.Field, Err: fe.Err})
	}
	return out
}
