package app

import (
	"context"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// ScanCommand audits the configured roots and reports duplicate groups.
type ScanCommand struct {
	output string
	top    int

	env *env
}

func NewScanCommand() *ScanCommand { return &ScanCommand{} }

func (c *ScanCommand) Name() string { return "scan" }

func (c *ScanCommand) Desc() string {
	return "扫描存储桶中的重复对象，输出去重报告"
}

func (c *ScanCommand) Init(f *pflag.FlagSet) {
	f.StringVar(&c.output, "output", "", "报告输出路径(JSON)，供 clean 使用")
	f.IntVar(&c.top, "top", 20, "终端展示的重复组数量，0 表示全部")
}

func (c *ScanCommand) PreRun(ctx context.Context) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	c.env = e
	logutil.GetLogger(ctx).Info("starting scan",
		zap.String("bucket", e.cfg.S3.Bucket),
		zap.String("canonical_root", e.cfg.Audit.CanonicalRoot),
		zap.Strings("legacy_roots", e.cfg.Audit.LegacyRoots),
		zap.String("output", c.output),
	)
	return nil
}

func (c *ScanCommand) Run(ctx context.Context) error {
	report, err := c.env.scanner(ctx).Scan(ctx, c.env.cfg.Audit.Roots())
	if err != nil {
		return err
	}
	c.env.metrics.ObserveReport(report)
	printReport(stdout, report, c.top)

	if c.output != "" {
		if err := writeJSON(c.output, report); err != nil {
			return err
		}
		logutil.GetLogger(ctx).Info("report written", zap.String("path", c.output), zap.Int("groups", len(report.Groups)))
	}
	return nil
}

func (c *ScanCommand) PostRun(ctx context.Context) error {
	c.env.flushMetrics(ctx)
	return nil
}

func init() {
	RegisterRunner("scan", func() IRunner { return NewScanCommand() })
}
