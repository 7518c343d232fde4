package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/xxxsen/storeaudit/internal/model"
)

// SessionState is the lifecycle position of an AuditSession.
type SessionState int

const (
	StateIdle SessionState = iota
	StateScanning
	StateScanned
	StateCleaning
	StateCleaned
	StateCleanedPartial
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateScanned:
		return "scanned"
	case StateCleaning:
		return "cleaning"
	case StateCleaned:
		return "cleaned"
	case StateCleanedPartial:
		return "cleaned_partial"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuditSession owns the report of one audit and guards the order of
// operations: a cleanup needs a report and nothing runs twice at once.
// The session never re-scans by itself; Clean may be repeated on the
// same, possibly stale, report.
type AuditSession struct {
	scanner  *Scanner
	executor *Executor

	mu      sync.Mutex
	state   SessionState
	report  *model.AuditReport
	summary *model.CleanupSummary
}

func NewAuditSession(scanner *Scanner, executor *Executor) *AuditSession {
	return &AuditSession{scanner: scanner, executor: executor}
}

func (s *AuditSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *AuditSession) Report() *model.AuditReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *AuditSession) Summary() *model.CleanupSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Load adopts a report produced by an earlier scan, e.g. read from disk.
func (s *AuditSession) Load(report *model.AuditReport) error {
	if report == nil {
		return fmt.Errorf("load nil report: %w", ErrInvalidState)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return fmt.Errorf("load report while %s: %w", s.state, ErrInvalidState)
	}
	s.report = report
	s.summary = nil
	s.state = StateScanned
	return nil
}

// Scan runs a fresh scan. On failure the session keeps its previous state
// and report.
func (s *AuditSession) Scan(ctx context.Context, roots []string) (*model.AuditReport, error) {
	s.mu.Lock()
	if s.busy() {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("scan while %s: %w", state, ErrInvalidState)
	}
	prev := s.state
	s.state = StateScanning
	s.mu.Unlock()

	report, err := s.scanner.Scan(ctx, roots)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = prev
		return nil, err
	}
	s.report = report
	s.summary = nil
	s.state = StateScanned
	return report, nil
}

// Clean consolidates the current report. A dry run leaves the session in
// StateScanned.
func (s *AuditSession) Clean(ctx context.Context, migrator ReferenceMigrator) (*model.CleanupSummary, error) {
	s.mu.Lock()
	switch s.state {
	case StateScanned, StateCleaned, StateCleanedPartial:
	default:
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("clean while %s: %w", state, ErrInvalidState)
	}
	if s.report == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("clean without report: %w", ErrInvalidState)
	}
	prev, report := s.state, s.report
	s.state = StateCleaning
	s.mu.Unlock()

	summary, err := s.executor.Clean(ctx, report, migrator)

	s.mu.Lock()
	defer s.mu.Unlock()
	if summary == nil {
		s.state = prev
		return nil, err
	}
	s.summary = summary
	switch {
	case summary.DryRun:
		s.state = StateScanned
	case summary.Complete():
		s.state = StateCleaned
	default:
		s.state = StateCleanedPartial
	}
	return summary, err
}

func (s *AuditSession) busy() bool {
	return s.state == StateScanning || s.state == StateCleaning
}
