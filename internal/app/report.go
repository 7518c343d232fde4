package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/xxxsen/storeaudit/internal/dedup"
	"github.com/xxxsen/storeaudit/internal/model"
)

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func readReport(path string) (*model.AuditReport, error) {
	var report model.AuditReport
	if err := readJSON(path, &report); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	for i, g := range report.Groups {
		if len(g.Files) < 2 {
			return nil, fmt.Errorf("report %s: group %d (%s) has %d files", path, i, g.Hash, len(g.Files))
		}
	}
	return &report, nil
}

func printReport(w io.Writer, r *model.AuditReport, top int) {
	fmt.Fprintf(w, "run %s: %s objects, %s excluded, %d folders skipped\n",
		r.RunID,
		humanize.Comma(int64(r.Stats.ObjectsSeen)),
		humanize.Comma(int64(r.Stats.Excluded)),
		r.Stats.FoldersSkipped,
	)
	fmt.Fprintf(w, "%d duplicate groups, %d redundant files, %s reclaimable\n",
		len(r.Groups), r.LoserCount(), humanize.IBytes(uint64(r.TotalWaste)))

	groups := r.Groups
	if top > 0 && len(groups) > top {
		groups = groups[:top]
	}
	for i, g := range groups {
		fmt.Fprintf(w, "%3d. %s x%d waste %s\n", i+1, g.Hash, len(g.Files), humanize.IBytes(uint64(g.Waste())))
		fmt.Fprintf(w, "     keep   %s\n", g.Winner().Path)
		for _, l := range g.Losers() {
			fmt.Fprintf(w, "     remove %s\n", l.Path)
		}
	}
	if rest := len(r.Groups) - len(groups); rest > 0 {
		fmt.Fprintf(w, "... %d more groups\n", rest)
	}
}

func printSummary(w io.Writer, s *model.CleanupSummary) {
	if s.DryRun {
		planned := 0
		for _, g := range s.Groups {
			if g.Status == dedup.GroupStatusPlanned {
				planned++
			}
		}
		fmt.Fprintf(w, "dry run: %d of %d groups would be consolidated\n", planned, len(s.Groups))
	} else {
		fmt.Fprintf(w, "cleaned %d, partial %d, untouched %d, skipped %d of %d groups\n",
			s.GroupsCleaned, s.GroupsPartial, s.GroupsUntouched, s.GroupsSkipped, len(s.Groups))
		fmt.Fprintf(w, "removed %d files, reclaimed %s, migrated %s references\n",
			s.LosersRemoved, humanize.IBytes(uint64(s.BytesReclaimed)), humanize.Comma(s.ReferencesMigrated))
	}
	for _, g := range s.Groups {
		if g.Error != "" {
			fmt.Fprintf(w, "  group %s %s: %s\n", g.Hash, g.Status, g.Error)
		}
		for _, l := range g.Losers {
			if l.Error != "" {
				fmt.Fprintf(w, "  kept %s (%s): %s\n", l.Path, l.Stage, l.Error)
			}
		}
	}
}
