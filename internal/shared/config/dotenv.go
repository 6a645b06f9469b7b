package config

import (
	"os"

	"github.com/spf13/viper"
)

// loadEnvFiles merges KEY=VALUE pairs from the given files into v if they exist.
// It is a best-effort helper for local development; errors are ignored.
func loadEnvFiles(v *viper.Viper, paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.MergeInConfig()
	}
}
