package filesecret

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ylchen07/chefkit/internal/provider"
)

func TestFileProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("s3cr3t\n"), 0o600))

	p, err := NewFileProvider(nil)
	require.NoError(t, err)

	v, err := p.GetSecret(context.Background(), provider.ParseReference("file://"+path))
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cr3t"), v)

	_, err = p.GetSecret(context.Background(), provider.ParseReference("file://"+path+".missing"))
	assert.Error(t, err)
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("CHEFKIT_TEST_KEY", "PEM")

	p, err := NewEnvProvider(nil)
	require.NoError(t, err)

	v, err := p.GetSecret(context.Background(), provider.ParseReference("env://CHEFKIT_TEST_KEY"))
	require.NoError(t, err)
	assert.Equal(t, []byte("PEM"), v)

	_, err = p.GetSecret(context.Background(), provider.ParseReference("env://CHEFKIT_TEST_UNSET"))
	assert.Error(t, err)
}

func TestResolveThroughRegistry(t *testing.T) {
	t.Setenv("CHEFKIT_TEST_KEY", "PEM")

	r := provider.NewRegistry()
	r.Register(FileScheme, NewFileProvider)
	r.Register(EnvScheme, NewEnvProvider)

	v, err := provider.NewResolver(r, nil).Resolve(context.Background(), "env://CHEFKIT_TEST_KEY")
	require.NoError(t, err)
	assert.Equal(t, []byte("PEM"), v)
}
