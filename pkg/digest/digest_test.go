package digest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artob/blobary/pkg/digest"
)

func TestFromBytesDeterministic(t *testing.T) {
	a := digest.FromBytes([]byte("Foo"))
	b := digest.FromBytes([]byte("Foo"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, digest.Zero, a)
}

func TestEmptyInputDigestIsKnown(t *testing.T) {
	d := digest.FromBytes(nil)
	assert.False(t, d.IsZero(), "empty input digest must not be the sentinel zero digest")
	// The empty-input digest is a fixed, well-known value for the hash
	// function; round-tripping it through hex must reproduce the same value.
	parsed, err := digest.ParseHex(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestHexRoundTrip(t *testing.T) {
	d := digest.FromBytes([]byte("Bar"))
	s := d.String()
	assert.Len(t, s, digest.HexSize)

	parsed, err := digest.ParseHex(s)
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestParseHexRejectsMalformed(t *testing.T) {
	_, err := digest.ParseHex("too-short")
	assert.Error(t, err)

	_, err = digest.ParseHex("zz" + string(make([]byte, digest.HexSize-2)))
	assert.Error(t, err)
}

func TestBase58RoundTrip(t *testing.T) {
	d := digest.FromBytes([]byte("Baz"))
	s := d.Base58()

	parsed, err := digest.ParseBase58(s)
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestParseTriesHexThenBase58(t *testing.T) {
	d := digest.FromBytes([]byte("Quux"))

	fromHex, err := digest.Parse(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, fromHex)

	fromB58, err := digest.Parse(d.Base58())
	require.NoError(t, err)
	assert.Equal(t, d, fromB58)

	_, err = digest.Parse("not a valid digest in any encoding!!")
	assert.Error(t, err)
}

func TestIsHex(t *testing.T) {
	d := digest.FromBytes([]byte("quux"))
	assert.True(t, digest.IsHex(d.String()))
	assert.False(t, digest.IsHex(".index"))
	assert.False(t, digest.IsHex("short"))
}
