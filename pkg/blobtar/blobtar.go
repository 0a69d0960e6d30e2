// Package blobtar implements bulk transfer of a store's blobs as a USTAR
// archive (spec §4.9), adapting the teacher's tar-generation idiom
// (archive/tar plus an apex/log-backed skip trail) from "whole filesystem
// tree" semantics to "one entry per blob, named by hex digest" semantics.
package blobtar

import (
	"archive/tar"
	"context"
	"io"
	"time"

	"github.com/apex/log"

	"github.com/artob/blobary/pkg/blobaryerr"
	"github.com/artob/blobary/pkg/blobstore"
	"github.com/artob/blobary/pkg/digest"
)

// rootUID and rootGID match spec §4.9's "owner/group root" requirement.
const (
	rootUID = 0
	rootGID = 0

	blobMode = 0o444
)

// Export walks source in iterator order, writing one USTAR entry per blob:
// path is the blob's lowercase hex digest, mode 0444, owner/group root.
func Export(ctx context.Context, w io.Writer, source blobstore.IndexedBlobStore) (int64, error) {
	tw := tar.NewWriter(w)

	it, err := blobstore.NewIterator(ctx, source)
	if err != nil {
		return 0, err
	}

	var count int64
	for {
		h, ok, err := it.Next(ctx)
		if err != nil {
			return count, err
		}
		if !ok {
			break
		}

		if err := writeEntry(ctx, tw, source, h); err != nil {
			return count, err
		}
		count++
	}

	if err := tw.Close(); err != nil {
		return count, blobaryerr.Wrap(err, blobaryerr.IO, "close tar writer")
	}
	return count, nil
}

func writeEntry(ctx context.Context, tw *tar.Writer, source blobstore.IndexedBlobStore, h *blobstore.Handle) error {
	full, err := source.GetByID(ctx, h.ID)
	if err != nil {
		return err
	}
	if full == nil {
		return nil
	}
	defer full.Close()

	stream, ok := full.Stream()
	if !ok {
		return blobaryerr.Wrapf(errBlobtar, blobaryerr.Unexpected, "blob %s has no readable stream", h.Digest)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     h.Digest.String(),
		Size:     h.Size,
		Mode:     blobMode,
		Uid:      rootUID,
		Gid:      rootGID,
		Uname:    "root",
		Gname:    "root",
		ModTime:  time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return blobaryerr.Wrap(err, blobaryerr.IO, "write tar header")
	}
	if _, err := io.Copy(tw, stream); err != nil {
		return blobaryerr.Wrap(err, blobaryerr.IO, "write tar entry body")
	}
	return nil
}

// Import reads USTAR entries from r and puts each one whose name parses as a
// canonical hex digest into target, verifying target.Put's returned digest
// matches the entry's filename digest. A mismatch is a fatal blobaryerr
// .DataError (spec §4.9: "mismatch is a fatal DataError"). Entries whose
// name does not parse as hex are silently skipped, allowing mixed archives.
func Import(ctx context.Context, r io.Reader, target blobstore.BlobStore) (int64, error) {
	tr := tar.NewReader(r)

	var count int64
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, blobaryerr.Wrap(err, blobaryerr.IO, "read tar header")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		want, err := digest.ParseHex(hdr.Name)
		if err != nil {
			log.WithField("name", hdr.Name).Debug("blobtar: skipping non-digest entry")
			continue
		}

		_, h, err := target.Put(ctx, tr)
		if err != nil {
			return count, err
		}
		if h.Digest != want {
			return count, blobaryerr.Wrapf(errBlobtar, blobaryerr.DataError,
				"tar entry %s: content hashes to %s", hdr.Name, h.Digest)
		}
		count++
	}

	return count, nil
}

var errBlobtar = errSentinel("blobtar")

type errSentinel string

func (e errSentinel) Error() string { return string(e) }
