package cli

import (
	"os"
	"path/filepath"

	"github.com/xxxsen/storeaudit/internal/config"
)

const (
	// ConfigFlag is the CLI flag name used to specify an explicit config path.
	ConfigFlag = "config"

	defaultConfigName = "config.json"
	systemConfigPath  = "/etc/storeaudit.json"
)

// LoadConfig resolves the configuration file. An explicit path must exist;
// otherwise the working directory and the system path are searched.
func LoadConfig(explicit string) (*config.Config, error) {
	if explicit != "" {
		return config.Load(explicit)
	}
	searchPaths := make([]string, 0, 2)
	if wd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(wd, defaultConfigName))
	}
	searchPaths = append(searchPaths, systemConfigPath)
	return config.LoadFirst(searchPaths...)
}
