package ephemeral_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/blobstore"
	"github.com/artob/blobary/pkg/blobstore/ephemeral"
)

func TestPutDedupesAndCounts(t *testing.T) {
	ctx := context.Background()
	s := ephemeral.New()
	defer s.Close()

	created1, h1, err := blobstore.PutString(ctx, s, "hello")
	require.NoError(t, err)
	assert.True(t, created1)

	created2, h2, err := blobstore.PutString(ctx, s, "hello")
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, h1.ID, h2.ID)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetByHashReturnsContent(t *testing.T) {
	ctx := context.Background()
	s := ephemeral.New()
	defer s.Close()

	_, h, err := blobstore.PutString(ctx, s, "payload")
	require.NoError(t, err)

	got, err := s.GetByHash(ctx, h.Digest)
	require.NoError(t, err)
	require.NotNil(t, got)
	stream, ok := got.Stream()
	require.True(t, ok)
	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

// TestRemoveTombstonesRatherThanShifts is the Ephemeral-store counterpart of
// the directory store's remove behavior: ids are never recycled or
// renumbered, matching the resolved Open Question in SPEC_FULL.md §9.
func TestRemoveTombstonesRatherThanShifts(t *testing.T) {
	ctx := context.Background()
	s := ephemeral.New()
	defer s.Close()

	_, h1, err := blobstore.PutString(ctx, s, "one")
	require.NoError(t, err)
	_, h2, err := blobstore.PutString(ctx, s, "two")
	require.NoError(t, err)

	existed, err := s.Remove(ctx, h1.Digest)
	require.NoError(t, err)
	assert.True(t, existed)

	// The surviving blob keeps its original id; nothing shifted down.
	id, ok, err := s.HashToID(ctx, h2.Digest)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, h2.ID, id)

	got, err := s.GetByHash(ctx, h1.Digest)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.GetByID(ctx, h1.ID)
	require.Error(t, err)
	kind, ok := blobaryerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, blobaryerr.Removed, kind)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "tombstoned slots still count")
}

func TestIteratorSkipsTombstones(t *testing.T) {
	ctx := context.Background()
	s := ephemeral.New()
	defer s.Close()

	_, h1, err := blobstore.PutString(ctx, s, "a")
	require.NoError(t, err)
	_, _, err = blobstore.PutString(ctx, s, "b")
	require.NoError(t, err)
	_, h3, err := blobstore.PutString(ctx, s, "c")
	require.NoError(t, err)

	_, err = s.Remove(ctx, h1.Digest)
	require.NoError(t, err)

	it, err := blobstore.NewIterator(ctx, s)
	require.NoError(t, err)

	var ids []int64
	for {
		h, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, h.ID)
	}
	assert.Equal(t, []int64{2, h3.ID}, ids)
}
