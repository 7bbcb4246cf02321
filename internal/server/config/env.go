package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// parseEnv overlays environment variables named by the `env` tags on Config.
// A .env file in the working directory is loaded first when present; it never
// overrides variables already set in the process environment. Unset variables
// leave the current value alone.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
