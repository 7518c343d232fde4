package dedup

import (
	"sort"
	"strings"

	"github.com/xxxsen/storeaudit/internal/model"
)

// Selector decides which copy of a duplicate group is kept.
//
// Files under the canonical root always rank before legacy files. Within the
// same category the earliest creation time ranks first, and the path breaks
// any remaining tie. The ranking depends only on path and creation time, so
// an unchanged backend always yields the same order.
type Selector struct {
	canonical string
}

// NewSelector builds a selector for the given canonical root prefix.
func NewSelector(canonicalRoot string) Selector {
	return Selector{canonical: strings.Trim(canonicalRoot, "/")}
}

// IsCanonical reports whether path lies under the canonical root.
func (s Selector) IsCanonical(path string) bool {
	path = strings.TrimPrefix(path, "/")
	if s.canonical == "" {
		return false
	}
	return path == s.canonical || strings.HasPrefix(path, s.canonical+"/")
}

// Compare returns a negative number when a should be kept over b, positive
// when b should be kept over a, and zero only for identical path and time.
func (s Selector) Compare(a, b model.AuditFile) int {
	ac, bc := s.IsCanonical(a.Path), s.IsCanonical(b.Path)
	if ac != bc {
		if ac {
			return -1
		}
		return 1
	}
	if !a.TimeCreated.Equal(b.TimeCreated) {
		if a.TimeCreated.Before(b.TimeCreated) {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Path, b.Path)
}

// Order returns a copy of g with Files sorted so that Files[0] is the winner.
func (s Selector) Order(g model.DuplicateGroup) model.DuplicateGroup {
	files := make([]model.AuditFile, len(g.Files))
	copy(files, g.Files)
	sort.SliceStable(files, func(i, j int) bool {
		return s.Compare(files[i], files[j]) < 0
	})
	return model.DuplicateGroup{Hash: g.Hash, Size: g.Size, Files: files}
}

// Finalize drops groups with fewer than two files, orders every group's files
// and orders the groups by waste, largest first. Equal waste is ordered by
// hash then size.
func (s Selector) Finalize(groups []model.DuplicateGroup) []model.DuplicateGroup {
	out := make([]model.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if len(g.Files) < 2 {
			continue
		}
		out = append(out, s.Order(g))
	}
	sort.SliceStable(out, func(i, j int) bool {
		wi, wj := out[i].Waste(), out[j].Waste()
		if wi != wj {
			return wi > wj
		}
		if out[i].Hash != out[j].Hash {
			return out[i].Hash < out[j].Hash
		}
		return out[i].Size < out[j].Size
	})
	return out
}
