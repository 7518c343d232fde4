package dedup

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/storeaudit/internal/model"
	"github.com/xxxsen/storeaudit/internal/storage"
)

const defaultConcurrency = 8

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScanProgress sets the progress sink of a scan.
func WithScanProgress(p ProgressFunc) ScannerOption {
	return func(s *Scanner) { s.progress = p }
}

// WithConcurrency bounds the number of metadata requests in flight.
func WithConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// Scanner runs the read-only half of an audit: walk, fingerprint, group and
// order. A Scanner keeps no state between calls, so concurrent scans are safe.
type Scanner struct {
	backend     storage.Backend
	selector    Selector
	concurrency int
	progress    ProgressFunc
}

// NewScanner builds a scanner for backend. canonicalRoot decides which copy of
// a group is kept.
func NewScanner(backend storage.Backend, canonicalRoot string, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		backend:     backend,
		selector:    NewSelector(canonicalRoot),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan audits every object under roots and returns the duplicate groups,
// largest waste first. Objects without a content hash or with failing
// metadata are excluded and counted. Only total backend unavailability or
// cancellation fails the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string) (*model.AuditReport, error) {
	logger := logutil.GetLogger(ctx)
	report := &model.AuditReport{
		RunID:         uuid.NewString(),
		CanonicalRoot: s.selector.canonical,
		Roots:         append([]string(nil), roots...),
		StartedAt:     time.Now().UTC(),
	}
	logger.Info("scan started", zap.String("run_id", report.RunID), zap.Strings("roots", roots))

	var seen, fingerprinted, excluded atomic.Int64
	grouper := NewGrouper()
	fp := NewFingerprinter(s.backend)
	enum := NewEnumerator(s.backend, s.progress)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(s.concurrency)
	walkStats, walkErr := enum.Walk(ectx, roots, func(ref storage.ObjectRef) error {
		seen.Add(1)
		eg.Go(func() error {
			f, err := fp.Fingerprint(ectx, ref)
			if err != nil {
				if ctxErr := ectx.Err(); ctxErr != nil {
					return ctxErr
				}
				excluded.Add(1)
				logger.Warn("exclude object from audit", zap.String("path", ref.Path), zap.Error(err))
				return nil
			}
			fingerprinted.Add(1)
			grouper.Add(f)
			return nil
		})
		return nil
	})
	waitErr := eg.Wait()
	if walkErr != nil {
		return nil, fmt.Errorf("walk roots: %w", walkErr)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("fingerprint objects: %w", waitErr)
	}

	groups := grouper.Groups()
	warnSizeMismatch(ctx, groups)
	report.Groups = s.selector.Finalize(groups)
	for _, g := range report.Groups {
		report.TotalWaste += g.Waste()
	}
	report.Stats = model.ScanStats{
		ObjectsSeen:     int(seen.Load()),
		Fingerprinted:   int(fingerprinted.Load()),
		Excluded:        int(excluded.Load()),
		FoldersSkipped:  walkStats.FoldersSkipped,
		RootsUnlistable: walkStats.RootsUnlistable,
	}
	report.FinishedAt = time.Now().UTC()

	s.progress.emit(Event{
		Phase:   PhaseScanning,
		Message: fmt.Sprintf("found %d duplicate groups", len(report.Groups)),
		Current: report.Stats.Fingerprinted,
		Total:   report.Stats.ObjectsSeen,
	})
	logger.Info("scan finished",
		zap.String("run_id", report.RunID),
		zap.Int("objects", report.Stats.ObjectsSeen),
		zap.Int("excluded", report.Stats.Excluded),
		zap.Int("folders_skipped", report.Stats.FoldersSkipped),
		zap.Int("groups", len(report.Groups)),
		zap.Int64("waste", report.TotalWaste),
	)
	return report, nil
}

func warnSizeMismatch(ctx context.Context, groups []model.DuplicateGroup) {
	sizes := make(map[string][]int64)
	for _, g := range groups {
		sizes[g.Hash] = append(sizes[g.Hash], g.Size)
	}
	for hash, list := range sizes {
		if len(list) > 1 {
			logutil.GetLogger(ctx).Warn("hash shared by objects of different size",
				zap.String("hash", hash), zap.Int64s("sizes", list))
		}
	}
}
