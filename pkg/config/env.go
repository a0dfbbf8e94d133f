package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadEnvFiles reads KEY=VALUE files into the process environment so that
// LIMITR_* overrides and key_env/dsn_env references can live in a .env file.
// Variables already set in the environment win over the files.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}
