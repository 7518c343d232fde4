package model

import "time"

const (
	GroupStatusCleaned   = "cleaned"
	GroupStatusPartial   = "partial"
	GroupStatusUntouched = "untouched"
	GroupStatusSkipped   = "skipped"
)

const (
	StageResolveURL = "resolve_url"
	StageVerify     = "verify"
	StageMigrate    = "migrate"
	StageDelete     = "delete"
	StageDone       = "done"
	StagePlanned    = "planned"
)

// LoserResult records how far a loser got through migrate-then-delete.
type LoserResult struct {
	Path     string `json:"path"`
	URL      string `json:"url,omitempty"`
	Stage    string `json:"stage"`
	Migrated int64  `json:"migrated"`
	Deleted  bool   `json:"deleted"`
	Error    string `json:"error,omitempty"`
}

// GroupResult is the outcome of one duplicate group.
type GroupResult struct {
	Hash      string        `json:"hash"`
	Size      int64         `json:"size"`
	Winner    string        `json:"winner"`
	WinnerURL string        `json:"winner_url,omitempty"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Losers    []LoserResult `json:"losers"`
}

// CleanupSummary is returned by a cleanup run.
type CleanupSummary struct {
	RunID              string        `json:"run_id"`
	DryRun             bool          `json:"dry_run"`
	Cancelled          bool          `json:"cancelled"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
	Groups             []GroupResult `json:"groups"`
	GroupsCleaned      int           `json:"groups_cleaned"`
	GroupsPartial      int           `json:"groups_partial"`
	GroupsUntouched    int           `json:"groups_untouched"`
	GroupsSkipped      int           `json:"groups_skipped"`
	LosersRemoved      int           `json:"losers_removed"`
	BytesReclaimed     int64         `json:"bytes_reclaimed"`
	ReferencesMigrated int64         `json:"references_migrated"`
}

// Finalize derives the totals from the per-group results.
func (s *CleanupSummary) Finalize() {
	s.GroupsCleaned, s.GroupsPartial, s.GroupsUntouched, s.GroupsSkipped = 0, 0, 0, 0
	s.LosersRemoved, s.BytesReclaimed, s.ReferencesMigrated = 0, 0, 0
	for _, g := range s.Groups {
		switch g.Status {
		case GroupStatusCleaned:
			s.GroupsCleaned++
		case GroupStatusPartial:
			s.GroupsPartial++
		case GroupStatusUntouched:
			s.GroupsUntouched++
		case GroupStatusSkipped:
			s.GroupsSkipped++
		}
		for _, l := range g.Losers {
			s.ReferencesMigrated += l.Migrated
			if l.Deleted {
				s.LosersRemoved++
				s.BytesReclaimed += g.Size
			}
		}
	}
}

// Complete reports whether every group was fully consolidated.
func (s *CleanupSummary) Complete() bool {
	return !s.DryRun && !s.Cancelled && s.GroupsCleaned == len(s.Groups)
}

// Unresolved lists the loser paths still present after the run.
func (s *CleanupSummary) Unresolved() []string {
	var out []string
	for _, g := range s.Groups {
		for _, l := range g.Losers {
			if !l.Deleted {
				out = append(out, l.Path)
			}
		}
	}
	return out
}
