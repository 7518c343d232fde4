package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/storeaudit/internal/storage"
)

var testRoots = []string{"images", "products", "services", "projects", "seasonal", "categories", "ui"}

func newTestBackend() *storage.MemoryBackend {
	m := storage.NewMemoryBackend("https://cdn.example.com")
	m.Put("images/products/p1.jpg", []byte("product-one"), t2025)
	m.Put("products/p1.jpg", []byte("product-one"), t2023)
	m.Put("services/old/p1.jpg", []byte("product-one"), t2024)
	m.Put("seasonal/banner.png", []byte("banner"), t2025)
	m.Put("ui/banner.png", []byte("banner"), t2023)
	m.Put("images/unique.jpg", []byte("unique"), t2023)
	return m
}

func collect(t *testing.T, e *Enumerator, roots []string) ([]string, WalkStats, error) {
	t.Helper()
	var paths []string
	stats, err := e.Walk(context.Background(), roots, func(ref storage.ObjectRef) error {
		paths = append(paths, ref.Path)
		return nil
	})
	return paths, stats, err
}

func TestWalkVisitsEveryObjectOnce(t *testing.T) {
	paths, stats, err := collect(t, NewEnumerator(newTestBackend(), nil), testRoots)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"images/products/p1.jpg", "images/unique.jpg", "products/p1.jpg",
		"services/old/p1.jpg", "seasonal/banner.png", "ui/banner.png",
	}, paths)
	// projects and categories are empty, which is not a failure
	assert.Zero(t, stats.FoldersSkipped)
}

func TestWalkOverlappingRootsDoNotRepeatObjects(t *testing.T) {
	paths, _, err := collect(t, NewEnumerator(newTestBackend(), nil), []string{"images", "images/products"})
	require.NoError(t, err)
	assert.Equal(t, []string{"images/unique.jpg", "images/products/p1.jpg"}, paths)
}

func TestWalkSkipsUnlistableFolders(t *testing.T) {
	m := newTestBackend()
	m.FailList("services/old", errors.New("boom"))
	m.FailList("ui", storage.ErrAccessDenied)

	paths, stats, err := collect(t, NewEnumerator(m, nil), testRoots)
	require.NoError(t, err)
	assert.NotContains(t, paths, "services/old/p1.jpg")
	assert.NotContains(t, paths, "ui/banner.png")
	assert.Contains(t, paths, "seasonal/banner.png")
	assert.Equal(t, 2, stats.FoldersSkipped)
	assert.Equal(t, 1, stats.RootsUnlistable)
}

func TestWalkFailsWhenNoRootIsListable(t *testing.T) {
	m := newTestBackend()
	for _, r := range testRoots {
		m.FailList(r, errors.New("offline"))
	}
	_, _, err := collect(t, NewEnumerator(m, nil), testRoots)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
}

func TestWalkStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEnumerator(newTestBackend(), nil).Walk(ctx, testRoots, func(storage.ObjectRef) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalkEmitsProgressPerRoot(t *testing.T) {
	var events []Event
	_, _, err := collect(t, NewEnumerator(newTestBackend(), func(ev Event) { events = append(events, ev) }), testRoots)
	require.NoError(t, err)
	require.Len(t, events, len(testRoots))
	assert.Equal(t, PhaseScanning, events[0].Phase)
	assert.Equal(t, len(testRoots), events[len(events)-1].Current)
}

func TestFingerprintRequiresHash(t *testing.T) {
	m := storage.NewMemoryBackend("")
	m.PutMeta("images/nohash.jpg", storage.ObjectMeta{Size: 3, TimeCreated: t2023})
	m.PutMeta("images/upper.jpg", storage.ObjectMeta{Hash: "ABCDEF", Size: 3, TimeCreated: t2023})
	fp := NewFingerprinter(m)

	_, err := fp.Fingerprint(context.Background(), storage.NewObjectRef("images/nohash.jpg"))
	var ferr *FingerprintError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "images/nohash.jpg", ferr.Path)
	assert.ErrorIs(t, err, ErrNoContentHash)

	got, err := fp.Fingerprint(context.Background(), storage.NewObjectRef("images/upper.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", got.Hash)
	assert.Equal(t, "upper.jpg", got.File.Name)
}

func TestScanBuildsReport(t *testing.T) {
	m := newTestBackend()
	report, err := NewScanner(m, "images", WithConcurrency(3)).Scan(context.Background(), testRoots)
	require.NoError(t, err)

	require.Len(t, report.Groups, 2)
	p1 := report.Groups[0]
	assert.Equal(t, int64(len("product-one")), p1.Size)
	assert.Equal(t, "images/products/p1.jpg", p1.Winner().Path)
	assert.Equal(t, "products/p1.jpg", p1.Files[1].Path)
	assert.Equal(t, "services/old/p1.jpg", p1.Files[2].Path)

	banner := report.Groups[1]
	assert.Equal(t, "ui/banner.png", banner.Winner().Path)

	assert.Equal(t, p1.Waste()+banner.Waste(), report.TotalWaste)
	assert.Equal(t, 6, report.Stats.ObjectsSeen)
	assert.Equal(t, 6, report.Stats.Fingerprinted)
	assert.Equal(t, "images", report.CanonicalRoot)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 6, m.MetadataCalls())
}

func TestScanExcludesObjectsWithoutHash(t *testing.T) {
	m := newTestBackend()
	m.PutMeta("products/nohash-a.jpg", storage.ObjectMeta{Size: 8, TimeCreated: t2023})
	m.PutMeta("ui/nohash-b.jpg", storage.ObjectMeta{Size: 8, TimeCreated: t2023})
	m.FailMetadata("seasonal/banner.png", errors.New("throttled"))

	report, err := NewScanner(m, "images").Scan(context.Background(), testRoots)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Stats.Excluded)
	assert.Equal(t, 8, report.Stats.ObjectsSeen)
	require.Len(t, report.Groups, 1)
	for _, f := range report.Groups[0].Files {
		assert.NotContains(t, f.Path, "nohash")
	}
}

func TestScanIsRepeatable(t *testing.T) {
	m := newTestBackend()
	s := NewScanner(m, "images", WithConcurrency(4))
	first, err := s.Scan(context.Background(), testRoots)
	require.NoError(t, err)
	second, err := s.Scan(context.Background(), testRoots)
	require.NoError(t, err)
	assert.Equal(t, first.Groups, second.Groups)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestScanFailsWhenBackendUnavailable(t *testing.T) {
	m := newTestBackend()
	for _, r := range testRoots {
		m.FailList(r, errors.New("offline"))
	}
	_, err := NewScanner(m, "images").Scan(context.Background(), testRoots)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
