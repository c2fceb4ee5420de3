package config

import (
	"errors"
	"os"

	"github.com/oriys/orkl/internal/logging"
)

// Load resolves the configuration for this process. path overrides
// ORKL_CONFIG_FILE. A file that cannot be read or parsed is logged and
// skipped; invalid environment values are returned as errors.
func Load(path string) (Config, error) {
	env := EnvMap(os.Environ())
	if path == "" {
		path = env[EnvConfigFile]
	}

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = b
		case errors.Is(err, os.ErrNotExist):
			logging.Op().Warn("config file not found, using defaults", "path", path)
		default:
			logging.Op().Warn("failed to read config file", "path", path, "error", err)
		}
	}

	cfg, err := Resolve(Default(), data, FormatFromPath(path), env)
	if errors.Is(err, ErrConfigParse) {
		logging.Op().Warn("failed to load config file", "path", path, "error", err)
		return Resolve(Default(), nil, FormatJSON, env)
	}
	return cfg, err
}
