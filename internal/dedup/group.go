package dedup

import (
	"sync"

	"github.com/xxxsen/storeaudit/internal/model"
)

type groupKey struct {
	hash string
	size int64
}

// Grouper accumulates fingerprints into content groups. Add is safe to call
// from several goroutines; insertion is serialized by the grouper's lock.
type Grouper struct {
	mu     sync.Mutex
	groups map[groupKey]*model.DuplicateGroup
	// order of first sighting, so Groups does not depend on map iteration
	order []groupKey
}

// NewGrouper returns an empty grouper.
func NewGrouper() *Grouper {
	return &Grouper{groups: make(map[groupKey]*model.DuplicateGroup)}
}

// Add appends fp to the group of its hash, creating the group on first sighting.
// Objects that share a hash but disagree on size are kept in separate groups.
func (g *Grouper) Add(fp Fingerprint) {
	key := groupKey{hash: fp.Hash, size: fp.Size}

	g.mu.Lock()
	defer g.mu.Unlock()
	grp, ok := g.groups[key]
	if !ok {
		grp = &model.DuplicateGroup{Hash: fp.Hash, Size: fp.Size}
		g.groups[key] = grp
		g.order = append(g.order, key)
	}
	grp.Files = append(grp.Files, fp.File)
}

// Groups returns copies of all groups holding at least two files. The
// returned groups are not yet ordered; see Selector.Finalize.
func (g *Grouper) Groups() []model.DuplicateGroup {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]model.DuplicateGroup, 0, len(g.order))
	for _, key := range g.order {
		grp := g.groups[key]
		if len(grp.Files) < 2 {
			continue
		}
		files := make([]model.AuditFile, len(grp.Files))
		copy(files, grp.Files)
		out = append(out, model.DuplicateGroup{Hash: grp.Hash, Size: grp.Size, Files: files})
	}
	return out
}

// GroupFingerprints is the pure form of Grouper: it returns the duplicate
// groups found in fps.
func GroupFingerprints(fps []Fingerprint) []model.DuplicateGroup {
	g := NewGrouper()
	for _, fp := range fps {
		g.Add(fp)
	}
	return g.Groups()
}
