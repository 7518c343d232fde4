package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appdb "github.com/xxxsen/storeaudit/internal/db"
	"github.com/xxxsen/storeaudit/internal/dedup"
)

// CleanCommand consolidates the duplicate groups of a saved report.
type CleanCommand struct {
	reportPath     string
	summaryPath    string
	force          bool
	dryRun         bool
	verify         bool
	skipReferences bool

	env     *env
	catalog *appdb.Catalog
}

// NewCleanCommand builds the clean command.
func NewCleanCommand() *CleanCommand {
	return &CleanCommand{}
}

// Name returns the command identifier.
func (c *CleanCommand) Name() string { return "clean" }

// Desc returns a short description.
func (c *CleanCommand) Desc() string {
	return "按报告迁移数据库引用并删除重复对象"
}

// Init registers CLI flags that affect the command.
func (c *CleanCommand) Init(fst *pflag.FlagSet) {
	fst.StringVar(&c.reportPath, "report", "", "scan 生成的报告路径")
	fst.StringVar(&c.summaryPath, "summary", "", "清理结果输出路径(JSON)")
	fst.BoolVar(&c.force, "force", false, "确认清理操作")
	fst.BoolVar(&c.dryRun, "dry-run", false, "只展示将要执行的操作，不修改任何数据")
	fst.BoolVar(&c.verify, "verify", false, "清理完成后重新扫描并统计剩余重复组")
	fst.BoolVar(&c.skipReferences, "skip-references", false, "未配置数据库时仍然删除重复对象")
}

// PreRun performs validation and initialisation.
func (c *CleanCommand) PreRun(ctx context.Context) error {
	if strings.TrimSpace(c.reportPath) == "" {
		return errors.New("clean requires --report")
	}
	if !c.force && !c.dryRun {
		return errors.New("refusing to clean without --force confirmation")
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	c.env = e
	if c.catalog, err = e.catalog(ctx); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("clean begin",
		zap.String("report", c.reportPath),
		zap.Bool("dry_run", c.dryRun),
		zap.Bool("verify", c.verify),
	)
	return nil
}

// Run executes the cleanup.
func (c *CleanCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	report, err := readReport(c.reportPath)
	if err != nil {
		return err
	}
	mig, err := migrator(c.catalog, c.skipReferences || c.dryRun)
	if err != nil {
		return err
	}

	executor := dedup.NewExecutor(c.env.backend,
		dedup.WithDryRun(c.dryRun),
		dedup.WithRecorder(c.env.metrics),
		dedup.WithProgress(logProgress(ctx)),
	)
	session := dedup.NewAuditSession(c.env.scanner(ctx), executor)
	if err := session.Load(report); err != nil {
		return err
	}

	summary, cleanErr := session.Clean(ctx, mig)
	if summary == nil {
		return cleanErr
	}
	printSummary(stdout, summary)
	if c.summaryPath != "" {
		if err := writeJSON(c.summaryPath, summary); err != nil {
			return err
		}
	}
	if cleanErr != nil {
		return cleanErr
	}

	if c.verify && !c.dryRun {
		roots := report.Roots
		if len(roots) == 0 {
			roots = c.env.cfg.Audit.Roots()
		}
		fresh, err := session.Scan(ctx, roots)
		if err != nil {
			return fmt.Errorf("verify scan: %w", err)
		}
		c.env.metrics.ObserveReport(fresh)
		logger.Info("verify scan finished",
			zap.Int("groups_before", len(report.Groups)),
			zap.Int("groups_after", len(fresh.Groups)),
			zap.Int64("waste_after", fresh.TotalWaste),
		)
		fmt.Fprintf(stdout, "verify: %d duplicate groups remain\n", len(fresh.Groups))
	}

	if left := summary.Unresolved(); !c.dryRun && len(left) > 0 {
		return fmt.Errorf("%d duplicates left in place, see summary", len(left))
	}
	logger.Info("clean finished", zap.String("state", session.State().String()))
	return nil
}

func (c *CleanCommand) PostRun(ctx context.Context) error {
	c.env.flushMetrics(ctx)
	return nil
}

func init() {
	RegisterRunner("clean", func() IRunner { return NewCleanCommand() })
}
