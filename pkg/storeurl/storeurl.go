// Package storeurl interprets the single optional URL string that chooses
// a store backend (spec §6), the way the teacher's `cas.Open` dispatches on
// a path, extended to a scheme-keyed dispatch table. Absence or an empty
// string means "current directory, subdirectory .blobary" (spec §6).
package storeurl

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/blobstore"
	"github.com/artob/blobary/pkg/blobstore/dir"
	"github.com/artob/blobary/pkg/blobstore/ephemeral"
)

// defaultSubdir is the store directory used when the input string is empty.
const defaultSubdir = ".blobary"

// Open dispatches raw to the backend it names and opens it:
//
//	""                         -> directory store at ./.blobary
//	file://<path>               -> directory store at <path>
//	memory:                      -> a new, empty ephemeral store
//	redis://…, s3://…, sqlite://… -> Unsupported (stub backends)
//
// Unrecognized or malformed URLs fail with blobaryerr.InvalidInput.
func Open(_ context.Context, raw string) (blobstore.BlobStore, error) {
	if raw == "" {
		return dir.Open(filepath.Join(".", defaultSubdir))
	}

	if raw == "memory:" {
		return ephemeral.New(), nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, blobaryerr.Wrapf(err, blobaryerr.InvalidInput, "invalid store url %q", raw)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "file":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			return nil, blobaryerr.New(blobaryerr.InvalidInput)
		}
		return dir.Open(path)
	case "memory":
		return ephemeral.New(), nil
	case "redis", "s3", "sqlite":
		return nil, blobaryerr.New(blobaryerr.Unsupported)
	default:
		return nil, blobaryerr.New(blobaryerr.InvalidInput)
	}
}
