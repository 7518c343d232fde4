package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/storeaudit/internal/model"
	"github.com/xxxsen/storeaudit/internal/storage"
)

// Fingerprint is the identity of an object's content plus the file it was read from.
type Fingerprint struct {
	Hash string
	Size int64
	File model.AuditFile
}

// Fingerprinter reads object metadata without downloading content.
type Fingerprinter struct {
	backend storage.Backend
}

// NewFingerprinter builds a fingerprinter over backend.
func NewFingerprinter(backend storage.Backend) *Fingerprinter {
	return &Fingerprinter{backend: backend}
}

// Fingerprint fetches hash, size and creation time of ref. Every failure,
// including a missing hash, is returned as a *FingerprintError.
func (f *Fingerprinter) Fingerprint(ctx context.Context, ref storage.ObjectRef) (Fingerprint, error) {
	meta, err := f.backend.Metadata(ctx, ref)
	if err != nil {
		return Fingerprint{}, &FingerprintError{Path: ref.Path, Err: err}
	}
	hash := normalizeHash(meta.Hash)
	if hash == "" {
		return Fingerprint{}, &FingerprintError{Path: ref.Path, Err: ErrNoContentHash}
	}
	return Fingerprint{
		Hash: hash,
		Size: meta.Size,
		File: model.AuditFile{
			Path:        ref.Path,
			Name:        ref.Name,
			TimeCreated: meta.TimeCreated.UTC(),
			Ref:         ref,
		},
	}, nil
}

func normalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// checkContent re-reads ref and fails with ErrContentChanged unless it still
// holds the content of g.
func checkContent(ctx context.Context, backend storage.Backend, ref storage.ObjectRef, g model.DuplicateGroup) error {
	meta, err := backend.Metadata(ctx, ref)
	if err != nil {
		return err
	}
	if hash := normalizeHash(meta.Hash); hash != g.Hash || meta.Size != g.Size {
		return fmt.Errorf("%w: %s is %s/%d, group is %s/%d", ErrContentChanged, ref.Path, hash, meta.Size, g.Hash, g.Size)
	}
	return nil
}
