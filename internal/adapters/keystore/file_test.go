package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	f := NewFile(path)

	got, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, got, "sin fichero no hay credencial")

	require.NoError(t, f.Save("cmc-pro-key"))
	got, err = f.Load()
	require.NoError(t, err)
	assert.Equal(t, "cmc-pro-key", got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_EmptyCredentialDeletes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	f := NewFile(path)

	require.NoError(t, f.Save("key"))
	require.NoError(t, f.Save(""))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	got, err := f.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFile_TrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	require.NoError(t, os.WriteFile(path, []byte("  key-with-newline\n"), 0o600))

	got, err := NewFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "key-with-newline", got)
}
