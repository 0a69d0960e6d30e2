// Package replicate copies blobs between two IndexedBlobStores (spec §4.8):
// a one-directional Pull, and a Sync that runs Pull in both directions so
// each store ends up holding the union of both digest sets.
package replicate

import (
	"context"

	"github.com/apex/log"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/blobstore"
)

// Stats summarizes one Pull call.
type Stats struct {
	// Copied is the number of blobs actually transferred.
	Copied int64
	// Skipped is the number of source blobs the target already had.
	Skipped int64
}

// Pull iterates source in id order and copies every blob target lacks,
// skipping (via ContainsHash) those it already has. target.Put re-verifies
// the digest of every transferred blob; a mismatch aborts the whole pull
// with a blobaryerr.DataError, per spec §4.8 ("put on the target re-
// verifies the digest; mismatch aborts with DataError").
func Pull(ctx context.Context, source, target blobstore.IndexedBlobStore) (Stats, error) {
	var stats Stats

	it, err := blobstore.NewIterator(ctx, source)
	if err != nil {
		return stats, err
	}

	for {
		h, ok, err := it.Next(ctx)
		if err != nil {
			return stats, err
		}
		if !ok {
			break
		}

		has, err := target.ContainsHash(ctx, h.Digest)
		if err != nil {
			return stats, err
		}
		if has {
			stats.Skipped++
			continue
		}

		if err := copyOne(ctx, source, target, h); err != nil {
			return stats, err
		}
		stats.Copied++
		log.Debugf("replicate: copied %s", h)
	}

	log.WithField("copied", stats.Copied).WithField("skipped", stats.Skipped).
		Debug("replicate: pull complete")
	return stats, nil
}

// copyOne transfers a single blob's stream from source to target and
// checks the digest target.Put reports matches the one the iterator
// already knew, surfacing a mismatch as a blobaryerr.DataError.
func copyOne(ctx context.Context, source, target blobstore.IndexedBlobStore, h *blobstore.Handle) error {
	src, err := source.GetByID(ctx, h.ID)
	if err != nil {
		return err
	}
	if src == nil {
		// GetByID reports an out-of-range id as (nil, nil); nothing to copy.
		// A slot removed since the snapshot comes back as a Removed error.
		return nil
	}
	defer src.Close()

	stream, ok := src.Stream()
	if !ok {
		return blobaryerr.Wrapf(errReplicate, blobaryerr.Unexpected, "source blob %s has no readable stream", h.Digest)
	}

	_, target2, err := target.Put(ctx, stream)
	if err != nil {
		return err
	}
	if target2.Digest != h.Digest {
		return blobaryerr.Wrapf(errReplicate, blobaryerr.DataError, "replicated blob digest mismatch: expected %s, target computed %s", h.Digest, target2.Digest)
	}
	return nil
}

var errReplicate = errSentinel("replicate")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }

// Sync pulls b into a (pullStats), then a into b (pushStats), so both
// stores end up holding the union of their digest sets (spec §4.8: "sync is
// pull-then-push of the same pair").
func Sync(ctx context.Context, a, b blobstore.IndexedBlobStore) (pullStats, pushStats Stats, err error) {
	pullStats, err = Pull(ctx, b, a)
	if err != nil {
		return pullStats, Stats{}, err
	}
	pushStats, err = Pull(ctx, a, b)
	if err != nil {
		return pullStats, pushStats, err
	}
	return pullStats, pushStats, nil
}
