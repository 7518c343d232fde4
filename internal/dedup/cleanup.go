package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/storeaudit/internal/model"
	"github.com/xxxsen/storeaudit/internal/storage"
)

// GroupStatusPlanned marks groups of a dry run.
const GroupStatusPlanned = "planned"

// Recorder receives cleanup counters, typically backed by metrics.
type Recorder interface {
	RecordGroup(status string)
	RecordMigrated(refs int64)
	RecordLoserRemoved(bytes int64)
	RecordFailure(stage string)
}

type nopRecorder struct{}

func (nopRecorder) RecordGroup(string) {}
func (nopRecorder) RecordMigrated(int64) {}
func (nopRecorder) RecordLoserRemoved(int64) {}
func (nopRecorder) RecordFailure(string) {}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithProgress sets the progress sink.
func WithProgress(p ProgressFunc) ExecutorOption {
	return func(e *Executor) { e.progress = p }
}

// WithRecorder sets the counter sink.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithDryRun makes Clean resolve URLs only, without migrating or deleting.
func WithDryRun(dryRun bool) ExecutorOption {
	return func(e *Executor) { e.dryRun = dryRun }
}

// Executor consolidates the duplicate groups of an AuditReport.
//
// For every loser the references are migrated first and the object is
// deleted only after migration succeeded, so no stored URL is ever left
// pointing at a deleted object. Failures keep the loser in place and the run
// moves on to the next loser.
type Executor struct {
	backend  storage.Backend
	progress ProgressFunc
	recorder Recorder
	dryRun   bool
}

// NewExecutor builds an executor over backend.
func NewExecutor(backend storage.Backend, opts ...ExecutorOption) *Executor {
	e := &Executor{backend: backend, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clean processes report.Groups in order. Cancellation is honoured between
// groups: a group that has started runs to completion and the remaining groups
// are reported as skipped, with the context error returned next to the summary.
func (e *Executor) Clean(ctx context.Context, report *model.AuditReport, migrator ReferenceMigrator) (*model.CleanupSummary, error) {
	if report == nil {
		return nil, errors.New("clean requires a report")
	}
	if migrator == nil {
		return nil, errors.New("clean requires a reference migrator")
	}
	logger := logutil.GetLogger(ctx)

	summary := &model.CleanupSummary{
		RunID:     report.RunID,
		DryRun:    e.dryRun,
		StartedAt: time.Now().UTC(),
		Groups:    make([]model.GroupResult, 0, len(report.Groups)),
	}
	total := len(report.Groups)

	for i, g := range report.Groups {
		if ctx.Err() != nil {
			summary.Cancelled = true
			for _, rest := range report.Groups[i:] {
				summary.Groups = append(summary.Groups, skippedGroup(rest))
				e.recorder.RecordGroup(model.GroupStatusSkipped)
			}
			break
		}

		res := e.cleanGroup(context.WithoutCancel(ctx), g, migrator)
		summary.Groups = append(summary.Groups, res)
		e.recorder.RecordGroup(res.Status)

		e.progress.emit(Event{
			Phase:   PhaseCleaning,
			Message: fmt.Sprintf("group %d/%d kept %s: %s", i+1, total, res.Winner, res.Status),
			Current: i + 1,
			Total:   total,
		})
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Finalize()

	logger.Info("cleanup finished",
		zap.String("run_id", summary.RunID),
		zap.Bool("dry_run", summary.DryRun),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Int("groups_cleaned", summary.GroupsCleaned),
		zap.Int("groups_partial", summary.GroupsPartial),
		zap.Int("groups_untouched", summary.GroupsUntouched),
		zap.Int("groups_skipped", summary.GroupsSkipped),
		zap.Int("losers_removed", summary.LosersRemoved),
		zap.Int64("references_migrated", summary.ReferencesMigrated),
	)

	if summary.Cancelled {
		return summary, fmt.Errorf("cleanup interrupted after %d of %d groups: %w",
			total-summary.GroupsSkipped, total, ctx.Err())
	}
	return summary, nil
}

func skippedGroup(g model.DuplicateGroup) model.GroupResult {
	res := model.GroupResult{Hash: g.Hash, Size: g.Size, Status: model.GroupStatusSkipped}
	if len(g.Files) > 0 {
		res.Winner = g.Files[0].Path
	}
	for _, l := range g.Losers() {
		res.Losers = append(res.Losers, model.LoserResult{Path: l.Path})
	}
	return res
}

func (e *Executor) cleanGroup(ctx context.Context, g model.DuplicateGroup, migrator ReferenceMigrator) model.GroupResult {
	logger := logutil.GetLogger(ctx)
	res := model.GroupResult{Hash: g.Hash, Size: g.Size}
	if len(g.Files) < 2 {
		res.Status = model.GroupStatusUntouched
		res.Error = "group has fewer than two files"
		return res
	}

	winner := g.Winner()
	res.Winner = winner.Path

	untouched := func(reason, stage string, err error) model.GroupResult {
		logger.Error(reason, zap.String("hash", g.Hash), zap.String("winner", winner.Path), zap.Error(err))
		res.Status = model.GroupStatusUntouched
		res.Error = fmt.Sprintf("%s: %v", reason, err)
		for _, l := range g.Losers() {
			res.Losers = append(res.Losers, model.LoserResult{Path: l.Path, Stage: stage})
			e.recorder.RecordFailure(stage)
		}
		return res
	}

	// a stale report may name a winner that is gone or was overwritten since
	// the scan; never migrate towards it
	if err := checkContent(ctx, e.backend, winner.Ref, g); err != nil {
		return untouched("winner not available", model.StageVerify, err)
	}
	winnerURL, err := e.backend.AccessURL(ctx, winner.Ref)
	if err != nil {
		return untouched("resolve winner url", model.StageResolveURL, err)
	}
	res.WinnerURL = winnerURL

	removed := 0
	for _, loser := range g.Losers() {
		lr := e.cleanLoser(ctx, g, loser, winner, winnerURL, migrator)
		if lr.Deleted {
			removed++
		}
		res.Losers = append(res.Losers, lr)
	}

	switch {
	case e.dryRun:
		res.Status = GroupStatusPlanned
	case removed == len(res.Losers):
		res.Status = model.GroupStatusCleaned
	case removed > 0:
		res.Status = model.GroupStatusPartial
	default:
		res.Status = model.GroupStatusUntouched
	}
	return res
}

func (e *Executor) cleanLoser(ctx context.Context, g model.DuplicateGroup, loser, winner model.AuditFile, winnerURL string, migrator ReferenceMigrator) model.LoserResult {
	logger := logutil.GetLogger(ctx).With(zap.String("loser", loser.Path), zap.String("winner", winner.Path))
	lr := model.LoserResult{Path: loser.Path, Stage: model.StageResolveURL}

	if loser.Path == winner.Path {
		lr.Error = "loser is the retained file"
		logger.Error("refuse to remove retained file")
		return lr
	}

	loserURL, err := e.backend.AccessURL(ctx, loser.Ref)
	if err != nil {
		lr.Error = err.Error()
		logger.Error("resolve loser url failed", zap.Error(err))
		e.recorder.RecordFailure(model.StageResolveURL)
		return lr
	}
	lr.URL = loserURL

	lr.Stage = model.StageVerify
	if err := checkContent(ctx, e.backend, loser.Ref, g); err != nil && !errors.Is(err, storage.ErrNotFound) {
		lr.Error = err.Error()
		logger.Error("loser no longer matches group, keep loser", zap.Error(err))
		e.recorder.RecordFailure(model.StageVerify)
		return lr
	}

	if e.dryRun {
		lr.Stage = model.StagePlanned
		return lr
	}

	lr.Stage = model.StageMigrate
	n, err := migrator.Migrate(ctx, loserURL, winnerURL)
	if err != nil {
		merr := &MigrationError{Path: loser.Path, Err: err}
		lr.Error = merr.Error()
		logger.Error("migrate references failed, keep loser", zap.Error(merr))
		e.recorder.RecordFailure(model.StageMigrate)
		return lr
	}
	lr.Migrated = n
	e.recorder.RecordMigrated(n)

	lr.Stage = model.StageDelete
	if err := e.backend.Delete(ctx, loser.Ref); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			derr := &DeletionError{Path: loser.Path, Err: err}
			lr.Error = derr.Error()
			logger.Error("delete loser failed", zap.Error(derr))
			e.recorder.RecordFailure(model.StageDelete)
			return lr
		}
		logger.Warn("loser already removed", zap.Error(err))
	} else {
		e.recorder.RecordLoserRemoved(g.Size)
	}

	lr.Stage = model.StageDone
	lr.Deleted = true
	logger.Debug("loser consolidated", zap.Int64("references", n))
	return lr
}
