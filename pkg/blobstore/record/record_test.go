package record_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artob/blobary/pkg/blobstore/record"
	"github.com/artob/blobary/pkg/digest"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := record.Record{
		Digest: digest.FromBytes([]byte("Foo")),
		Size:   3,
	}
	buf := r.Bytes()
	assert.Len(t, buf, record.Size)

	decoded, err := record.Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := record.Decode(make([]byte, record.Size-1))
	assert.Error(t, err)
}

func TestFileNameIsCanonicalHex(t *testing.T) {
	d := digest.FromBytes([]byte("Bar"))
	assert.Equal(t, d.String(), record.FileName(d))
}

func TestIDOffsetRoundTrip(t *testing.T) {
	for id := int64(1); id < 10; id++ {
		off := record.OffsetForID(id)
		assert.Equal(t, id, record.IDForOffset(off))
	}
}

func TestLargeSizeField(t *testing.T) {
	// 5 GiB, to make sure the 64-bit size field isn't truncated.
	r := record.Record{
		Digest: digest.FromBytes([]byte("big")),
		Size:   5 * 1024 * 1024 * 1024,
	}
	decoded, err := record.Decode(r.Bytes())
	require.NoError(t, err)
	assert.Equal(t, r.Size, decoded.Size)
}
