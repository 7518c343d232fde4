package model

import (
	"time"

	"github.com/xxxsen/storeaudit/internal/storage"
)

// AuditFile is one stored copy of a piece of content.
type AuditFile struct {
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	TimeCreated time.Time         `json:"time_created"`
	Ref         storage.ObjectRef `json:"ref"`
}

// DuplicateGroup holds byte-identical copies. Once a group is part of an
// AuditReport, Files[0] is the copy to keep and every other entry is a loser.
type DuplicateGroup struct {
	Hash  string      `json:"hash"`
	Size  int64       `json:"size"`
	Files []AuditFile `json:"files"`
}

// Winner returns the file that is retained.
func (g DuplicateGroup) Winner() AuditFile {
	return g.Files[0]
}

// Losers returns the files scheduled for migration and deletion.
func (g DuplicateGroup) Losers() []AuditFile {
	if len(g.Files) < 2 {
		return nil
	}
	return g.Files[1:]
}

// Waste is the number of bytes held by redundant copies.
func (g DuplicateGroup) Waste() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Files)-1)
}

// ScanStats counts what a scan saw and skipped.
type ScanStats struct {
	ObjectsSeen     int `json:"objects_seen"`
	Fingerprinted   int `json:"fingerprinted"`
	Excluded        int `json:"excluded"`
	FoldersSkipped  int `json:"folders_skipped"`
	RootsUnlistable int `json:"roots_unlistable"`
}

// AuditReport lists duplicate groups ordered by waste, highest first.
type AuditReport struct {
	RunID         string           `json:"run_id"`
	CanonicalRoot string           `json:"canonical_root"`
	Roots         []string         `json:"roots"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
	Stats         ScanStats        `json:"stats"`
	TotalWaste    int64            `json:"total_waste"`
	Groups        []DuplicateGroup `json:"groups"`
}

// LoserCount returns the number of files that cleanup would remove.
func (r *AuditReport) LoserCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Losers())
	}
	return n
}
