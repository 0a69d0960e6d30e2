// Package digest implements the 256-bit content digest that identifies every
// blob in a Blobary repository. A Digest is a fixed-width BLAKE3 sum with a
// canonical lowercase hex encoding and an optional base58 encoding.
package digest

import (
	"encoding/hex"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

// Size is the length, in bytes, of a Digest.
const Size = 32

// HexSize is the length, in characters, of a Digest's canonical hex form.
const HexSize = Size * 2

// Digest is a 256-bit content digest. The zero Digest is reserved as a
// sentinel and is never the digest of any stored blob (BLAKE3 of any input,
// including the empty input, is non-zero).
type Digest [Size]byte

// Zero is the reserved sentinel digest.
var Zero Digest

// IsZero reports whether d is the reserved sentinel value.
func (d Digest) IsZero() bool {
	return d == Zero
}

// String returns the canonical lowercase hex encoding of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Base58 returns the base58 encoding of d.
func (d Digest) Base58() string {
	return base58.Encode(d[:])
}

// FromBytes computes the Digest of the given byte slice. This is the
// standalone hash function that pkg/hasher's streaming accumulator must
// agree with for any input.
func FromBytes(b []byte) Digest {
	return Digest(blake3.Sum256(b))
}

// ParseHex parses the canonical 64-character lowercase hex form of a Digest.
// It is strict: any length other than HexSize, or any non-hex byte, fails.
func ParseHex(s string) (Digest, error) {
	var d Digest
	if len(s) != HexSize {
		return d, errors.Errorf("invalid digest: wrong length %d, want %d", len(s), HexSize)
	}
	n, err := hex.Decode(d[:], []byte(s))
	if err != nil {
		return d, errors.Wrap(err, "invalid digest: not hex")
	}
	if n != Size {
		return d, errors.Errorf("invalid digest: decoded %d bytes, want %d", n, Size)
	}
	return d, nil
}

// ParseBase58 parses the base58 encoding of a Digest.
func ParseBase58(s string) (Digest, error) {
	var d Digest
	raw, err := base58.Decode(s)
	if err != nil {
		return d, errors.Wrap(err, "invalid digest: not base58")
	}
	if len(raw) != Size {
		return d, errors.Errorf("invalid digest: decoded %d bytes, want %d", len(raw), Size)
	}
	copy(d[:], raw)
	return d, nil
}

// Parse tries to parse s as a Digest, trying the canonical hex form first
// and falling back to base58. It fails if neither encoding matches.
func Parse(s string) (Digest, error) {
	if d, err := ParseHex(s); err == nil {
		return d, nil
	}
	d, err := ParseBase58(s)
	if err != nil {
		return Digest{}, errors.Errorf("invalid digest %q: not valid hex or base58", s)
	}
	return d, nil
}

// IsHex reports whether s has the shape of a canonical hex digest, without
// fully parsing it: exactly HexSize characters, each in [0-9a-f]. Names
// such as ".index" are rejected.
func IsHex(s string) bool {
	if len(s) != HexSize {
		return false
	}
	for _, c := range []byte(s) {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
