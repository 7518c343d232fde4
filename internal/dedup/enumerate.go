package dedup

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/storeaudit/internal/storage"
)

// WalkStats counts folders the walk could not list.
type WalkStats struct {
	FoldersSkipped  int
	RootsUnlistable int
}

// Enumerator walks every object below a set of root prefixes, depth first.
// It holds no state between walks, so a walk can be restarted by calling
// Walk again.
type Enumerator struct {
	backend  storage.Backend
	progress ProgressFunc
}

// NewEnumerator builds an enumerator over backend.
func NewEnumerator(backend storage.Backend, progress ProgressFunc) *Enumerator {
	return &Enumerator{backend: backend, progress: progress}
}

// Walk calls fn once for every object reachable from roots. Folders that fail
// to list are logged and skipped. The context is checked before each folder.
// If none of the roots can be listed the walk fails with ErrBackendUnavailable.
func (e *Enumerator) Walk(ctx context.Context, roots []string, fn func(storage.ObjectRef) error) (WalkStats, error) {
	w := &walker{
		backend: e.backend,
		fn:      fn,
		folders: make(map[string]struct{}),
		objects: make(map[string]struct{}),
	}

	for i, root := range roots {
		e.progress.emit(Event{
			Phase:   PhaseScanning,
			Message: fmt.Sprintf("scanning %s", root),
			Current: i + 1,
			Total:   len(roots),
		})
		listed, err := w.walkFolder(ctx, storage.FolderPrefix(root))
		if err != nil {
			return w.stats, err
		}
		if !listed {
			w.stats.RootsUnlistable++
		}
	}

	if len(roots) > 0 && w.stats.RootsUnlistable == len(roots) {
		return w.stats, fmt.Errorf("list roots %v: %w", roots, ErrBackendUnavailable)
	}
	return w.stats, nil
}

type walker struct {
	backend storage.Backend
	fn      func(storage.ObjectRef) error
	folders map[string]struct{}
	objects map[string]struct{}
	stats   WalkStats
}

// walkFolder reports whether the folder could be listed. A non-nil error
// aborts the whole walk.
func (w *walker) walkFolder(ctx context.Context, prefix string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := w.folders[prefix]; ok {
		return true, nil
	}
	w.folders[prefix] = struct{}{}

	listing, err := w.backend.List(ctx, prefix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		w.stats.FoldersSkipped++
		logutil.GetLogger(ctx).Warn("skip unlistable folder",
			zap.String("folder", prefix),
			zap.Error(&EnumerationError{Path: prefix, Err: err}),
		)
		return false, nil
	}

	for _, ref := range listing.Files {
		if _, ok := w.objects[ref.Path]; ok {
			continue
		}
		w.objects[ref.Path] = struct{}{}
		if err := w.fn(ref); err != nil {
			return true, err
		}
	}

	for _, sub := range listing.Subfolders {
		if _, err := w.walkFolder(ctx, storage.FolderPrefix(sub)); err != nil {
			return true, err
		}
	}
	return true, nil
}
