package chef

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Client is an API client of the organization
type Client struct {
	*Entity
}

func newClient(e *Entity) *Client { return &Client{Entity: e} }

// ChefKey is the key pair the server generates when a client is created
type ChefKey struct {
	Name           string `json:"name"`
	PublicKey      string `json:"public_key"`
	PrivateKey     string `json:"private_key"`
	ExpirationDate string `json:"expiration_date"`
}

// ChefKey returns the key pair from the create response, or nil when the
// client was not created through this value
func (c *Client) ChefKey() *ChefKey {
	c.mu.Lock()
	raw, ok := c.receipt["chef_key"]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	var key ChefKey
	if err := decodeInto(raw, &key); err != nil {
		return nil
	}
	return &key
}

func (c *Client) Validator(ctx context.Context) (bool, error) {
	return field[bool](ctx, c.Entity, "validator")
}

func (c *Client) OrgName(ctx context.Context) (string, error) {
	return field[string](ctx, c.Entity, "orgname")
}

func (c *Client) PublicKey(ctx context.Context) (string, error) {
	return field[string](ctx, c.Entity, "public_key")
}

// Keys returns the keys registered for this client
func (c *Client) Keys() *Manager[*ClientKey] {
	return newManager(c.chef, KindClientKey, c.name, newClientKey)
}

// KeyByName returns the key called name
func (c *Client) KeyByName(ctx context.Context, name string) (*ClientKey, error) {
	for key := range c.Keys().All(ctx) {
		if key.Name() == name {
			return key, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "key %s of client %s", name, c.name)
}

// DeleteKey removes a key. Unknown keys return false without a request.
func (c *Client) DeleteKey(ctx context.Context, name string) bool {
	keys := c.Keys()
	ok, err := keys.Contains(ctx, name)
	if err != nil || !ok {
		c.chef.logger.Info("client key not found",
			zap.String("client", c.name),
			zap.String("key", name),
			zap.Error(err),
		)
		return false
	}
	return keys.Delete(ctx, name)
}

// ClientKey is one public key of a client
type ClientKey struct {
	*Entity
}

func newClientKey(e *Entity) *ClientKey { return &ClientKey{Entity: e} }

func (k *ClientKey) Expired(ctx context.Context) (bool, error) {
	return field[bool](ctx, k.Entity, "expired")
}

func (k *ClientKey) ExpirationDate(ctx context.Context) (string, error) {
	return field[string](ctx, k.Entity, "expiration_date")
}

func (k *ClientKey) PublicKey(ctx context.Context) (string, error) {
	return field[string](ctx, k.Entity, "public_key")
}
