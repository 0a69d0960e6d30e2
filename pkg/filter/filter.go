// Package filter defines the pluggable transform that a store may apply
// around on-disk blob I/O (spec §4.10). No filters are registered by
// default; a store's option list is empty unless the caller opts in.
package filter

import (
	"bytes"
	"io"
)

// Filter is a symmetric transform: Encode runs on the way into storage,
// Decode reverses it on the way out. Both report the number of bytes
// written to w.
//
// When a filter chain is applied to a store, the content digest is computed
// over the post-Encode bytes: de-duplication therefore operates on the
// encoded representation, not on the caller's original bytes.
type Filter interface {
	Encode(w io.Writer, r io.Reader) (int64, error)
	Decode(w io.Writer, r io.Reader) (int64, error)
}

// Chain composes an ordered list of Filters. Encode applies them
// first-to-last; Decode reverses them last-to-first. An empty Chain is a
// transparent pass-through.
type Chain []Filter

// Encode runs r through every filter in the chain, in order, writing the
// final result to w.
func (c Chain) Encode(w io.Writer, r io.Reader) (int64, error) {
	if len(c) == 0 {
		return io.Copy(w, r)
	}
	cur := r
	for i, f := range c {
		if i == len(c)-1 {
			return f.Encode(w, cur)
		}
		var buf bytes.Buffer
		if _, err := f.Encode(&buf, cur); err != nil {
			return 0, err
		}
		cur = &buf
	}
	panic("unreachable")
}

// Decode reverses Encode: it runs r through the chain's filters last-to-
// first, writing the final result to w.
func (c Chain) Decode(w io.Writer, r io.Reader) (int64, error) {
	if len(c) == 0 {
		return io.Copy(w, r)
	}
	cur := r
	for i := len(c) - 1; i >= 0; i-- {
		f := c[i]
		if i == 0 {
			return f.Decode(w, cur)
		}
		var buf bytes.Buffer
		if _, err := f.Decode(&buf, cur); err != nil {
			return 0, err
		}
		cur = &buf
	}
	panic("unreachable")
}
