// Package databagcrypt encrypts and decrypts Chef data bag items.
//
// Only the version 3 envelope (aes-256-gcm) is produced or read. Version 1
// and 2 envelopes are detected and left untouched. Failures never abort an
// item: they are returned as FieldError values next to whatever could be
// processed, and logged.
package databagcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/ylchen07/chefkit/pkg/models"
)

const (
	// IDField is never encrypted
	IDField = "id"
	// FormatVersion is the only envelope version this package reads and writes
	FormatVersion = 3
	// CipherName is the algorithm recorded in every envelope
	CipherName = "aes-256-gcm"
	// NonceSize is the nonce length used when encrypting
	NonceSize = 12
	// WrapWidth is the line length of the base64 members
	WrapWidth = 60

	jsonWrapperKey = "json_wrapper"
)

var (
	// ErrNotEnvelope is reported for a field that is not an encrypted envelope
	ErrNotEnvelope = errors.New("field is not an encrypted envelope")
	// ErrUnsupportedVersion is reported for envelopes other than version 3
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
	// ErrMissingMember is reported when iv, encrypted_data or auth_tag is absent
	ErrMissingMember = errors.New("envelope member missing")
	// ErrAuthentication is reported when the GCM tag does not verify
	ErrAuthentication = errors.New("authentication failed, wrong secret?")
	// ErrMissingID is reported when an item has no id
	ErrMissingID = errors.New("item has no id")
)

// FieldError ties a failure to the field it happened on
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return "field " + e.Field + ": " + e.Err.Error()
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// Cipher encrypts and decrypts data bag items with one secret
type Cipher struct {
	key      [32]byte
	rand     io.Reader
	wrapJSON bool
	logger   *zap.Logger
}

// Option configures a Cipher
type Option func(*Cipher)

// WithLogger sets the logger used for swallowed failures
func WithLogger(l *zap.Logger) Option {
	return func(c *Cipher) { c.logger = l }
}

// WithRand replaces the nonce source
func WithRand(r io.Reader) Option {
	return func(c *Cipher) { c.rand = r }
}

// WithJSONWrapper encrypts values as {"json_wrapper": value}, the way knife does
func WithJSONWrapper() Option {
	return func(c *Cipher) { c.wrapJSON = true }
}

// DeriveKey turns a shared secret into the AES-256 key
func DeriveKey(secret []byte) [32]byte {
	return sha256.Sum256(secret)
}

// New creates a Cipher for secret
func New(secret []byte, opts ...Option) *Cipher {
	c := &Cipher{
		key:    DeriveKey(secret),
		rand:   rand.Reader,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decrypt returns a plaintext copy of item. Fields that fail are left out
// and reported.
func (c *Cipher) Decrypt(item map[string]any) (map[string]any, []FieldError) {
	out, errs := c.each(item, func(_ string, v any) (any, error) {
		env, ok := v.(map[string]any)
		if !ok {
			return nil, ErrNotEnvelope
		}
		return c.DecryptField(env)
	})
	for _, fe := range errs {
		c.logger.Warn("data bag item field not decrypted",
			zap.Any("id", item[IDField]),
			zap.String("field", fe.Field),
			zap.Error(fe.Err),
		)
	}
	return out, errs
}

// Encrypt returns a copy of item with every field except id replaced by a
// version 3 envelope. Each field gets a fresh nonce.
func (c *Cipher) Encrypt(item map[string]any) (map[string]any, []FieldError) {
	out, errs := c.each(item, func(_ string, v any) (any, error) {
		env, err := c.EncryptField(v)
		if err != nil {
			return nil, err
		}
		return env.Map(), nil
	})
	for _, fe := range errs {
		c.logger.Warn("data bag item field not encrypted",
			zap.Any("id", item[IDField]),
			zap.String("field", fe.Field),
			zap.Error(fe.Err),
		)
	}
	return out, errs
}

func (c *Cipher) each(item map[string]any, fn func(string, any) (any, error)) (map[string]any, []FieldError) {
	out := make(map[string]any, len(item))
	var errs []FieldError

	if id, ok := item[IDField]; ok {
		out[IDField] = id
	} else {
		errs = append(errs, FieldError{Field: IDField, Err: ErrMissingID})
	}

	for k, v := range item {
		if k == IDField {
			continue
		}
		res, err := fn(k, v)
		if err != nil {
			errs = append(errs, FieldError{Field: k, Err: err})
			continue
		}
		out[k] = res
	}
	return out, errs
}

// DecryptField opens a single envelope and returns the original JSON value
func (c *Cipher) DecryptField(env map[string]any) (any, error) {
	version, ok := envelopeVersion(env)
	if !ok {
		return nil, ErrNotEnvelope
	}
	if version != FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}

	iv, err := member(env, "iv")
	if err != nil {
		return nil, err
	}
	data, err := member(env, "encrypted_data")
	if err != nil {
		return nil, err
	}
	tag, err := member(env, "auth_tag")
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, errors.Wrap(err, "create GCM")
	}

	// GCM expects the tag appended to the ciphertext
	sealed := make([]byte, 0, len(data)+len(tag))
	sealed = append(sealed, data...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrAuthentication
	}

	var value any
	if err := json.Unmarshal(plaintext, &value); err != nil {
		return nil, errors.Wrap(err, "decode plaintext")
	}
	if wrapped, ok := value.(map[string]any); ok && len(wrapped) == 1 {
		if inner, ok := wrapped[jsonWrapperKey]; ok {
			return inner, nil
		}
	}
	return value, nil
}

// EncryptField seals a single JSON value
func (c *Cipher) EncryptField(value any) (models.Envelope, error) {
	if c.wrapJSON {
		value = map[string]any{jsonWrapperKey: value}
	}
	plaintext, err := json.Marshal(value)
	if err != nil {
		return models.Envelope{}, errors.Wrap(err, "encode value")
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return models.Envelope{}, errors.Wrap(err, "create cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return models.Envelope{}, errors.Wrap(err, "create GCM")
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return models.Envelope{}, errors.Wrap(err, "generate nonce")
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - gcm.Overhead()

	return models.Envelope{
		IV:            Wrap(base64.StdEncoding.EncodeToString(nonce)),
		EncryptedData: Wrap(base64.StdEncoding.EncodeToString(sealed[:split])),
		AuthTag:       Wrap(base64.StdEncoding.EncodeToString(sealed[split:])),
		Version:       FormatVersion,
		Cipher:        CipherName,
	}, nil
}

// Wrap breaks b64 into WrapWidth wide lines, each terminated by a newline
func Wrap(b64 string) string {
	var sb strings.Builder
	for len(b64) > WrapWidth {
		sb.WriteString(b64[:WrapWidth])
		sb.WriteByte('\n')
		b64 = b64[WrapWidth:]
	}
	if b64 != "" {
		sb.WriteString(b64)
	}
	sb.WriteByte('\n')
	return sb.String()
}

func member(env map[string]any, name string) ([]byte, error) {
	raw, ok := env[name].(string)
	if !ok || raw == "" {
		return nil, errors.Wrapf(ErrMissingMember, "%s", name)
	}
	// The decoder skips the line breaks added by Wrap
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	return b, nil
}
