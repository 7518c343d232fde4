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
)

// RefsCommand counts database references to the files a report would remove.
type RefsCommand struct {
	reportPath string

	env     *env
	catalog *appdb.Catalog
}

func NewRefsCommand() *RefsCommand { return &RefsCommand{} }

func (c *RefsCommand) Name() string { return "refs" }

func (c *RefsCommand) Desc() string {
	return "统计报告中待删除对象在数据库中的引用数量(只读)"
}

func (c *RefsCommand) Init(f *pflag.FlagSet) {
	f.StringVar(&c.reportPath, "report", "", "scan 生成的报告路径")
}

func (c *RefsCommand) PreRun(ctx context.Context) error {
	if strings.TrimSpace(c.reportPath) == "" {
		return errors.New("refs requires --report")
	}
	e, err := loadEnv()
	if err != nil {
		return err
	}
	c.env = e
	if c.catalog, err = e.catalog(ctx); err != nil {
		return err
	}
	if c.catalog == nil {
		return errors.New("refs requires a configured database")
	}
	return nil
}

func (c *RefsCommand) Run(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	report, err := readReport(c.reportPath)
	if err != nil {
		return err
	}

	type loserURL struct {
		path string
		url  string
	}
	var losers []loserURL
	urls := make([]string, 0, report.LoserCount())
	for _, g := range report.Groups {
		for _, l := range g.Losers() {
			u, err := c.env.backend.AccessURL(ctx, l.Ref)
			if err != nil {
				logger.Warn("resolve url failed", zap.String("path", l.Path), zap.Error(err))
				continue
			}
			losers = append(losers, loserURL{path: l.Path, url: u})
			urls = append(urls, u)
		}
	}

	counts, err := c.catalog.CountReferences(ctx, urls)
	if err != nil {
		return err
	}
	var total int64
	referenced := 0
	for _, l := range losers {
		n := counts[l.url]
		if n == 0 {
			continue
		}
		referenced++
		total += n
		fmt.Fprintf(stdout, "%6d  %s\n", n, l.path)
	}
	fmt.Fprintf(stdout, "%d of %d duplicate files referenced, %d references in total\n", referenced, len(losers), total)
	logger.Info("refs completed", zap.Int("losers", len(losers)), zap.Int("referenced", referenced), zap.Int64("references", total))
	return nil
}

func (c *RefsCommand) PostRun(ctx context.Context) error { return nil }

func init() {
	RegisterRunner("refs", func() IRunner { return NewRefsCommand() })
}
