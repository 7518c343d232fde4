package main

import (
	"os"

	"github.com/xxxsen/common/logger"

	"github.com/xxxsen/storeaudit/internal/cli"
)

func main() {
	logger.Init("", "debug", 0, 0, 0, true)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
