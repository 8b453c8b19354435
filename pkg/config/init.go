package config

import (
	"fmt"
	"os"
)

// InitConfig writes a fully-defaulted configuration file to the default
// location ($XDG_CONFIG_HOME/dittofs/config.yaml), returning the path it
// wrote. An existing file is left alone unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a fully-defaulted configuration file to path.
// An existing file is left alone unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}
	return SaveConfig(GetDefaultConfig(), path)
}
