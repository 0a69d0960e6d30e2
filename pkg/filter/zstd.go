package filter

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Zstd is a Filter backed by github.com/klauspost/compress/zstd. It is not
// registered on any store by default; callers opt in via a store's option
// list (spec §4.10 is explicit that the default filter chain is empty).
type Zstd struct{}

// Encode compresses r into w, returning the number of compressed bytes
// written to w.
func (Zstd) Encode(w io.Writer, r io.Reader) (int64, error) {
	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return 0, err
	}
	if err := enc.Close(); err != nil {
		return 0, err
	}
	return io.Copy(w, &compressed)
}

// Decode decompresses r into w.
func (Zstd) Decode(w io.Writer, r io.Reader) (int64, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, err
	}
	defer dec.Close()
	return io.Copy(w, dec)
}
