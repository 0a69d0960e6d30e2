package hasher_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artob/blobary/pkg/digest"
	"github.com/artob/blobary/pkg/hasher"
)

func TestWriteMatchesDigestFromBytes(t *testing.T) {
	h := hasher.New()
	_, err := h.Write([]byte("hello world"))
	require.NoError(t, err)

	assert.Equal(t, digest.FromBytes([]byte("hello world")), h.Finalize())
}

func TestWriteInChunksMatchesSingleWrite(t *testing.T) {
	h := hasher.New()
	_, err := h.Write([]byte("hello"))
	require.NoError(t, err)
	_, err = h.Write([]byte(" world"))
	require.NoError(t, err)

	assert.Equal(t, digest.FromBytes([]byte("hello world")), h.Finalize())
}

func TestAbsorbFileMatchesWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob")
	content := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	h := hasher.New()
	n, err := h.AbsorbFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)
	assert.Equal(t, digest.FromBytes(content), h.Finalize())
}

func TestAbsorbEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	h := hasher.New()
	n, err := h.AbsorbFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, digest.FromBytes(nil), h.Finalize())
}

func TestFinalizePanicsAfterFinalize(t *testing.T) {
	h := hasher.New()
	h.Finalize()
	assert.Panics(t, func() { h.Finalize() })
}
