package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/storeaudit/internal/app"
	appdb "github.com/xxxsen/storeaudit/internal/db"
	"github.com/xxxsen/storeaudit/internal/storage"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "storeaudit",
	Short:         "Audit duplicate objects in a storage bucket and consolidate them",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(commandContext(cmd), cfgPath)
	},
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the running command; a
// cleanup finishes the group it is working on before it stops.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer teardown(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(ctx).Error("exec cmd failed", zap.Error(err))
		return err
	}
	return nil
}

func setup(ctx context.Context, path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.SetConfig(cfg)

	backend, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	storage.SetDefaultClient(backend)
	return nil
}

// teardown closes the record database if a command opened it.
func teardown(ctx context.Context) {
	catalog := appdb.Default()
	if catalog == nil {
		return
	}
	if err := catalog.Close(); err != nil {
		logutil.GetLogger(ctx).Warn("close database failed", zap.Error(err))
	}
	appdb.SetDefault(nil)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, ConfigFlag, "", "config file (default ./config.json, /etc/storeaudit.json)")

	for _, r := range app.RunnerList() {
		runner := app.MustResolveRunner(r)
		subcmd := &cobra.Command{
			Use:   runner.Name(),
			Short: runner.Desc(),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := commandContext(cmd)
				if err := runner.PreRun(ctx); err != nil {
					return err
				}
				if err := runner.Run(ctx); err != nil {
					return err
				}
				return runner.PostRun(ctx)
			},
		}
		runner.Init(subcmd.Flags())
		rootCmd.AddCommand(subcmd)
	}
}
