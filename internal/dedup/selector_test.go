package dedup

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/storeaudit/internal/model"
	"github.com/xxxsen/storeaudit/internal/storage"
)

func auditFile(path string, created time.Time) model.AuditFile {
	ref := storage.NewObjectRef(path)
	return model.AuditFile{Path: ref.Path, Name: ref.Name, TimeCreated: created, Ref: ref}
}

func fingerprint(hash string, size int64, path string, created time.Time) Fingerprint {
	return Fingerprint{Hash: hash, Size: size, File: auditFile(path, created)}
}

var (
	t2023 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t2024 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2025 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func TestCanonicalCopyWinsOverOlderLegacyCopy(t *testing.T) {
	sel := NewSelector("images")
	groups := sel.Finalize(GroupFingerprints([]Fingerprint{
		fingerprint("abc", 100, "products/legacy.jpg", t2023),
		fingerprint("abc", 100, "images/canonical.jpg", t2025),
	}))
	require.Len(t, groups, 1)
	assert.Equal(t, "images/canonical.jpg", groups[0].Winner().Path)
	assert.Equal(t, "products/legacy.jpg", groups[0].Losers()[0].Path)
}

func TestOlderCopyWinsWithinLegacyRoots(t *testing.T) {
	sel := NewSelector("images")
	groups := sel.Finalize(GroupFingerprints([]Fingerprint{
		fingerprint("xyz", 50, "products/newer.jpg", t2025),
		fingerprint("xyz", 50, "services/older.jpg", t2023),
	}))
	require.Len(t, groups, 1)
	assert.Equal(t, "services/older.jpg", groups[0].Winner().Path)
}

func TestOldestCanonicalCopyWins(t *testing.T) {
	sel := NewSelector("images")
	groups := sel.Finalize(GroupFingerprints([]Fingerprint{
		fingerprint("h", 10, "images/b.jpg", t2025),
		fingerprint("h", 10, "products/a.jpg", t2023),
		fingerprint("h", 10, "images/a.jpg", t2024),
	}))
	require.Len(t, groups, 1)
	var paths []string
	for _, f := range groups[0].Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"images/a.jpg", "images/b.jpg", "products/a.jpg"}, paths)
}

func TestUniqueFileProducesNoGroup(t *testing.T) {
	sel := NewSelector("images")
	groups := sel.Finalize(GroupFingerprints([]Fingerprint{
		fingerprint("dup", 100, "products/a.jpg", t2023),
		fingerprint("dup", 100, "images/a.jpg", t2024),
		fingerprint("unique", 100, "services/u.jpg", t2023),
	}))
	require.Len(t, groups, 1)
	assert.Equal(t, "dup", groups[0].Hash)
}

func TestSingleFileProducesEmptyReport(t *testing.T) {
	groups := NewSelector("images").Finalize(GroupFingerprints([]Fingerprint{
		fingerprint("only", 1, "images/only.jpg", t2023),
	}))
	assert.Empty(t, groups)
}

func TestIsCanonical(t *testing.T) {
	sel := NewSelector("/images/")
	tests := []struct {
		path string
		want bool
	}{
		{"images", true},
		{"images/a.jpg", true},
		{"/images/x/y.png", true},
		{"imagesold/a.jpg", false},
		{"products/images/a.jpg", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, sel.IsCanonical(tc.path), tc.path)
	}
}

func TestCompareIsTotalAndAntisymmetric(t *testing.T) {
	sel := NewSelector("images")
	files := []model.AuditFile{
		auditFile("images/a.jpg", t2024),
		auditFile("images/b.jpg", t2024),
		auditFile("images/c.jpg", t2023),
		auditFile("products/a.jpg", t2023),
		auditFile("ui/a.jpg", t2023),
		auditFile("seasonal/z.jpg", t2025),
	}
	for _, a := range files {
		for _, b := range files {
			ab, ba := sel.Compare(a, b), sel.Compare(b, a)
			if a.Path == b.Path {
				assert.Zero(t, ab)
				continue
			}
			assert.NotZero(t, ab, "%s vs %s", a.Path, b.Path)
			assert.Equal(t, ab < 0, ba > 0, "%s vs %s", a.Path, b.Path)
		}
	}
}

func TestGroupsShareHashAndSize(t *testing.T) {
	groups := GroupFingerprints([]Fingerprint{
		fingerprint("h1", 10, "images/a", t2023),
		fingerprint("h1", 10, "products/a", t2023),
		fingerprint("h1", 11, "services/a", t2023),
		fingerprint("h1", 11, "ui/a", t2023),
		fingerprint("h2", 10, "ui/b", t2023),
		fingerprint("h2", 10, "ui/c", t2023),
	})
	require.Len(t, groups, 3)
	for _, g := range groups {
		assert.GreaterOrEqual(t, len(g.Files), 2)
		for _, f := range g.Files {
			assert.NotEmpty(t, f.Path)
		}
	}
	assert.Equal(t, int64(10), groups[0].Size)
	assert.Equal(t, int64(11), groups[1].Size)
}

func TestFinalizeOrdersByWasteDescending(t *testing.T) {
	var fps []Fingerprint
	add := func(hash string, size int64, copies int) {
		for i := 0; i < copies; i++ {
			fps = append(fps, fingerprint(hash, size, fmt.Sprintf("products/%s-%d", hash, i), t2023))
		}
	}
	add("small", 10, 5)   // waste 40
	add("big", 1000, 2)   // waste 1000
	add("medium", 100, 3) // waste 200
	add("tie-b", 20, 3)   // waste 40
	add("tie-a", 40, 2)   // waste 40

	groups := NewSelector("images").Finalize(GroupFingerprints(fps))
	var order []string
	for i, g := range groups {
		order = append(order, g.Hash)
		if i > 0 {
			assert.GreaterOrEqual(t, groups[i-1].Waste(), g.Waste())
		}
	}
	assert.Equal(t, []string{"big", "medium", "small", "tie-a", "tie-b"}, order)
}

func TestFinalizeIsIdempotentAcrossInputOrder(t *testing.T) {
	fps := []Fingerprint{
		fingerprint("a", 5, "products/1", t2024),
		fingerprint("a", 5, "images/1", t2025),
		fingerprint("a", 5, "services/1", t2023),
		fingerprint("b", 7, "ui/1", t2023),
		fingerprint("b", 7, "ui/2", t2023),
	}
	reversed := make([]Fingerprint, len(fps))
	for i, fp := range fps {
		reversed[len(fps)-1-i] = fp
	}
	sel := NewSelector("images")
	first := sel.Finalize(GroupFingerprints(fps))
	second := sel.Finalize(GroupFingerprints(reversed))
	assert.Equal(t, first, second)
	assert.Equal(t, first, sel.Finalize(first))
}
