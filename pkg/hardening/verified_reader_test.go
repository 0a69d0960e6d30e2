package hardening_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/digest"
	"github.com/artob/blobary/pkg/hardening"
)

func TestVerifiedReadCloserPassesMatchingDigest(t *testing.T) {
	content := "the quick brown fox"
	v := &hardening.VerifiedReadCloser{
		Reader:         io.NopCloser(strings.NewReader(content)),
		ExpectedDigest: digest.FromBytes([]byte(content)),
	}

	data, err := io.ReadAll(v)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	require.NoError(t, v.Close())
}

func TestVerifiedReadCloserRejectsMismatchOnEOF(t *testing.T) {
	content := "the quick brown fox"
	v := &hardening.VerifiedReadCloser{
		Reader:         io.NopCloser(strings.NewReader(content)),
		ExpectedDigest: digest.FromBytes([]byte("not the same content")),
	}

	_, err := io.ReadAll(v)
	require.Error(t, err)
	kind, ok := blobaryerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, blobaryerr.DataError, kind)
}

func TestVerifiedReadCloserRejectsMismatchOnClose(t *testing.T) {
	content := "short"
	v := &hardening.VerifiedReadCloser{
		Reader:         io.NopCloser(strings.NewReader(content)),
		ExpectedDigest: digest.FromBytes([]byte("different")),
	}

	buf := make([]byte, 2)
	_, err := v.Read(buf)
	require.NoError(t, err)

	err = v.Close()
	require.Error(t, err)
	kind, ok := blobaryerr.Of(err)
	require.True(t, ok)
	assert.Equal(t, blobaryerr.DataError, kind)
}
