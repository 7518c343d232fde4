package app

import (
	"context"

	"github.com/spf13/pflag"
)

// IRunner is a subcommand. The cli layer registers its flags with Init and
// then calls PreRun, Run and PostRun in order, stopping at the first error.
type IRunner interface {
	Name() string
	Desc() string
	Init(f *pflag.FlagSet)
	PreRun(ctx context.Context) error
	Run(ctx context.Context) error
	PostRun(ctx context.Context) error
}
