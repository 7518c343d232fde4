package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/storeaudit/internal/config"
	appdb "github.com/xxxsen/storeaudit/internal/db"
	"github.com/xxxsen/storeaudit/internal/dedup"
	"github.com/xxxsen/storeaudit/internal/metrics"
	"github.com/xxxsen/storeaudit/internal/storage"
)

var (
	defaultConfig *config.Config

	// stdout is where commands print their human readable result.
	stdout io.Writer = os.Stdout
)

// SetConfig assigns the configuration used by every runner.
func SetConfig(c *config.Config) {
	defaultConfig = c
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return defaultConfig
}

// env bundles what a command needs from the process wide setup.
type env struct {
	cfg      *config.Config
	backend  storage.Backend
	registry *prometheus.Registry
	metrics  *metrics.AuditMetrics
}

func loadEnv() (*env, error) {
	cfg := Config()
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	backend := storage.DefaultClient()
	if backend == nil {
		return nil, errors.New("storage client not initialised")
	}
	reg := prometheus.NewRegistry()
	return &env{
		cfg:      cfg,
		backend:  backend,
		registry: reg,
		metrics:  metrics.NewAuditMetricsWithRegistry(reg),
	}, nil
}

func (e *env) scanner(ctx context.Context) *dedup.Scanner {
	return dedup.NewScanner(e.backend, e.cfg.Audit.CanonicalRoot,
		dedup.WithConcurrency(e.cfg.Audit.Concurrency),
		dedup.WithScanProgress(logProgress(ctx)),
	)
}

// catalog opens the record database on first use. It returns nil when no
// database is configured.
func (e *env) catalog(ctx context.Context) (*appdb.Catalog, error) {
	if c := appdb.Default(); c != nil {
		return c, nil
	}
	if !e.cfg.Database.Enabled() {
		return nil, nil
	}
	c, err := appdb.OpenCatalog(ctx, e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	appdb.SetDefault(c)
	logutil.GetLogger(ctx).Info("reference database opened",
		zap.String("driver", e.cfg.Database.Driver), zap.Int("domains", len(c.Stores())))
	return c, nil
}

// migrator fans out over the domain stores of catalog. Without a database
// the caller must opt in explicitly, since deleting a loser would otherwise
// leave its stored URLs dangling.
func migrator(catalog *appdb.Catalog, skipReferences bool) (dedup.ReferenceMigrator, error) {
	if catalog != nil {
		mm := make(dedup.MultiMigrator, 0, len(catalog.Stores()))
		for _, s := range catalog.Stores() {
			mm = append(mm, s)
		}
		return mm, nil
	}
	if !skipReferences {
		return nil, errors.New("no reference database configured, pass --skip-references to delete without migrating")
	}
	return dedup.MigratorFunc(func(context.Context, string, string) (int64, error) {
		return 0, nil
	}), nil
}

func (e *env) flushMetrics(ctx context.Context) {
	if e.cfg.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(e.cfg.MetricsFile, e.registry); err != nil {
		logutil.GetLogger(ctx).Error("write metrics textfile failed",
			zap.String("path", e.cfg.MetricsFile), zap.Error(err))
		return
	}
	logutil.GetLogger(ctx).Debug("metrics written", zap.String("path", e.cfg.MetricsFile))
}

func logProgress(ctx context.Context) dedup.ProgressFunc {
	logger := logutil.GetLogger(ctx)
	return func(ev dedup.Event) {
		logger.Info(fmt.Sprintf("%s progress", ev.Phase),
			zap.String("message", ev.Message),
			zap.Int("current", ev.Current),
			zap.Int("total", ev.Total),
		)
	}
}
