// SPDX-License-Identifier: Apache-2.0
/*
 * umoci: Umoci Modifies Open Containers' Images
 * Copyright (C) 2016-2025 SUSE LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package hardening implements VerifiedReadCloser, a digest-checking reader
// wrapper for a caller that holds a digest it claims a stream will match.
// Tar import and replication do not use it; they compare the digest that
// the target's Put reports.
package hardening

import (
	"io"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/digest"
	"github.com/artob/blobary/pkg/hasher"
)

// VerifiedReadCloser is an io.ReadCloser that hashes the entire stream as it
// passes through, and on EOF (or Close) compares the accumulated digest
// against ExpectedDigest. A mismatch surfaces as a blobaryerr.DataError,
// matching the error kind every backend uses for hash mismatches (spec §7).
//
// If the stream is not read to EOF, the check runs on Close over the bytes
// read so far, so a partial read with a correct ExpectedDigest also fails.
type VerifiedReadCloser struct {
	// Reader is the underlying stream.
	Reader io.ReadCloser

	// ExpectedDigest is the digest the stream is claimed to match.
	ExpectedDigest digest.Digest

	h        *hasher.Hasher
	verified bool
}

func (v *VerifiedReadCloser) init() {
	if v.h == nil {
		v.h = hasher.New()
	}
}

// Read pipes through to Reader, feeding every byte read to the running
// digest, and checks the digest once the underlying reader reports EOF.
func (v *VerifiedReadCloser) Read(p []byte) (int, error) {
	n, err := v.Reader.Read(p)
	v.init()
	if n > 0 {
		if _, werr := v.h.Write(p[:n]); werr != nil {
			return n, blobaryerr.Wrap(werr, blobaryerr.IO, "verified reader: hash write")
		}
	}
	if err == io.EOF {
		if verr := v.verify(); verr != nil {
			return n, verr
		}
	}
	return n, err
}

// Close closes the underlying Reader and, if the stream was never read to
// EOF, performs the digest check now.
func (v *VerifiedReadCloser) Close() error {
	if err := v.Reader.Close(); err != nil {
		return err
	}
	return v.verify()
}

// verify finalizes the digest exactly once (Finalize must not be called
// twice) and compares it to ExpectedDigest.
func (v *VerifiedReadCloser) verify() error {
	if v.verified {
		return nil
	}
	v.init()
	v.verified = true

	actual := v.h.Finalize()
	if actual != v.ExpectedDigest {
		return blobaryerr.Wrapf(errMismatch, blobaryerr.DataError, "expected %s, got %s", v.ExpectedDigest, actual)
	}
	return nil
}

var errMismatch = errMismatchError{}

// errMismatchError is a trivial sentinel satisfying the error interface, so
// that blobaryerr.Wrapf always has a non-nil cause to wrap (Wrap/Wrapf treat
// a nil cause as "no error occurred").
type errMismatchError struct{}

func (errMismatchError) Error() string { return "digest mismatch" }
