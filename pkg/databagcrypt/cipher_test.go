package databagcrypt

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItem() map[string]any {
	return map[string]any{
		"id":       "adam",
		"password": "s3cr3t",
		"uid":      float64(1001),
		"admin":    true,
		"groups":   []any{"wheel", "ops"},
		"ssh":      map[string]any{"keys": []any{"ssh-ed25519 AAAA"}, "port": float64(22)},
		"note":     nil,
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := New([]byte("shared secret"))

	enc, errs := c.Encrypt(sampleItem())
	require.Empty(t, errs)
	assert.Equal(t, "adam", enc["id"])
	assert.Equal(t, Encrypted, Detect(enc))

	dec, errs := c.Decrypt(enc)
	require.Empty(t, errs)
	assert.Equal(t, sampleItem(), dec)
}

func TestEncryptUsesFreshNonces(t *testing.T) {
	c := New([]byte("shared secret"))
	item := map[string]any{"id": "x", "a": "same", "b": "same"}

	first, errs := c.Encrypt(item)
	require.Empty(t, errs)
	second, errs := c.Encrypt(item)
	require.Empty(t, errs)

	a1 := first["a"].(map[string]any)
	a2 := second["a"].(map[string]any)
	b1 := first["b"].(map[string]any)

	assert.NotEqual(t, a1["iv"], a2["iv"])
	assert.NotEqual(t, a1["encrypted_data"], a2["encrypted_data"])
	assert.NotEqual(t, a1["iv"], b1["iv"])
}

func TestEnvelopeLayout(t *testing.T) {
	c := New([]byte("k"))
	long := strings.Repeat("x", 200)

	env, err := c.EncryptField(long)
	require.NoError(t, err)

	assert.Equal(t, FormatVersion, env.Version)
	assert.Equal(t, CipherName, env.Cipher)

	for _, member := range []string{env.IV, env.EncryptedData, env.AuthTag} {
		assert.True(t, strings.HasSuffix(member, "\n"))
		for _, line := range strings.Split(strings.TrimSuffix(member, "\n"), "\n") {
			assert.LessOrEqual(t, len(line), WrapWidth)
		}
	}
	assert.Greater(t, strings.Count(env.EncryptedData, "\n"), 1)

	iv, err := base64.StdEncoding.DecodeString(env.IV)
	require.NoError(t, err)
	assert.Len(t, iv, NonceSize)
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	require.NoError(t, err)
	assert.Len(t, tag, 16)
}

func TestWrap(t *testing.T) {
	assert.Equal(t, "\n", Wrap(""))
	assert.Equal(t, "abc\n", Wrap("abc"))

	exact := strings.Repeat("a", WrapWidth)
	assert.Equal(t, exact+"\n", Wrap(exact))

	over := strings.Repeat("a", WrapWidth) + "bb"
	assert.Equal(t, exact+"\nbb\n", Wrap(over))
}

func TestDecryptWrongSecret(t *testing.T) {
	enc, errs := New([]byte("right")).Encrypt(map[string]any{"id": "db", "pw": "hunter2"})
	require.Empty(t, errs)

	dec, errs := New([]byte("wrong")).Decrypt(enc)
	require.Len(t, errs, 1)
	assert.Equal(t, "pw", errs[0].Field)
	assert.True(t, errors.Is(errs[0], ErrAuthentication))
	assert.Equal(t, map[string]any{"id": "db"}, dec)
}

func TestDecryptKeepsGoodFields(t *testing.T) {
	c := New([]byte("secret"))
	enc, errs := c.Encrypt(map[string]any{"id": "db", "user": "app", "pw": "hunter2"})
	require.Empty(t, errs)

	broken := enc["pw"].(map[string]any)
	delete(broken, "auth_tag")

	dec, errs := c.Decrypt(enc)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrMissingMember))
	assert.Equal(t, map[string]any{"id": "db", "user": "app"}, dec)
}

func TestDecryptRejectsLegacyVersions(t *testing.T) {
	c := New([]byte("secret"))
	for _, version := range []any{float64(1), float64(2)} {
		env := map[string]any{
			"encrypted_data": "Zm9v\n",
			"iv":             "YmFy\n",
			"version":        version,
			"cipher":         "aes-256-cbc",
		}
		_, err := c.DecryptField(env)
		assert.True(t, errors.Is(err, ErrUnsupportedVersion))
	}
}

func TestJSONWrapper(t *testing.T) {
	wrapped := New([]byte("secret"), WithJSONWrapper())
	plain := New([]byte("secret"))

	env, err := wrapped.EncryptField("value")
	require.NoError(t, err)

	got, err := plain.DecryptField(env.Map())
	require.NoError(t, err)
	assert.Equal(t, "value", got)
}

func TestDeterministicNonceSource(t *testing.T) {
	zero := bytes.NewReader(make([]byte, 2*NonceSize))
	c := New([]byte("secret"), WithRand(zero))

	a, err := c.EncryptField("v")
	require.NoError(t, err)
	b, err := c.EncryptField("v")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = c.EncryptField("v")
	assert.Error(t, err)
}

func TestEncryptWithoutID(t *testing.T) {
	out, errs := New([]byte("s")).Encrypt(map[string]any{"a": "b"})
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrMissingID))
	assert.Contains(t, out, "a")
}
