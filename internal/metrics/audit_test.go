package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"

	"github.com/xxxsen/storeaudit/internal/dedup"
	"github.com/xxxsen/storeaudit/internal/model"
)

var _ dedup.Recorder = (*AuditMetrics)(nil)

func gather(t *testing.T, reg *prometheus.Registry, name string) *io_prometheus_client.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func labelValue(mf *io_prometheus_client.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestObserveReport(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetricsWithRegistry(reg)

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.ObserveReport(&model.AuditReport{
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Stats:      model.ScanStats{ObjectsSeen: 120, Excluded: 3, FoldersSkipped: 1},
		TotalWaste: 4096,
		Groups:     make([]model.DuplicateGroup, 7),
	})

	cases := map[string]float64{
		"storeaudit_scan_objects":                        120,
		"storeaudit_scan_excluded_objects":               3,
		"storeaudit_scan_folders_skipped":                1,
		"storeaudit_scan_duplicate_groups":               7,
		"storeaudit_scan_waste_bytes":                    4096,
		"storeaudit_scan_duration_seconds":               90,
		"storeaudit_scan_last_success_timestamp_seconds": float64(start.Add(90 * time.Second).Unix()),
	}
	for name, want := range cases {
		got := gather(t, reg, name).GetMetric()[0].GetGauge().GetValue()
		if got != want {
			t.Errorf("%s: expected %v, got %v", name, want, got)
		}
	}
}

func TestCleanupCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetricsWithRegistry(reg)

	m.RecordGroup(model.GroupStatusCleaned)
	m.RecordGroup(model.GroupStatusCleaned)
	m.RecordGroup(model.GroupStatusPartial)
	m.RecordMigrated(5)
	m.RecordMigrated(0)
	m.RecordLoserRemoved(1024)
	m.RecordFailure(model.StageMigrate)

	groups := gather(t, reg, "storeaudit_cleanup_groups_total")
	if v := labelValue(groups, "status", "cleaned"); v != 2 {
		t.Errorf("expected 2 cleaned groups, got %v", v)
	}
	if v := labelValue(groups, "status", "partial"); v != 1 {
		t.Errorf("expected 1 partial group, got %v", v)
	}
	if v := gather(t, reg, "storeaudit_cleanup_references_migrated_total").GetMetric()[0].GetCounter().GetValue(); v != 5 {
		t.Errorf("expected 5 migrated references, got %v", v)
	}
	if v := gather(t, reg, "storeaudit_cleanup_reclaimed_bytes_total").GetMetric()[0].GetCounter().GetValue(); v != 1024 {
		t.Errorf("expected 1024 reclaimed bytes, got %v", v)
	}
	if v := labelValue(gather(t, reg, "storeaudit_cleanup_failures_total"), "stage", "migrate"); v != 1 {
		t.Errorf("expected 1 migrate failure, got %v", v)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewAuditMetricsWithRegistry(reg)
	m.WasteBytes.Set(12)

	path := filepath.Join(t.TempDir(), "storeaudit.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "storeaudit_scan_waste_bytes 12") {
		t.Errorf("textfile missing waste gauge:\n%s", data)
	}
}
