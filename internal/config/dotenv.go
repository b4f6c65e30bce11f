package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env.local, .env.<APP_ENV> and .env when present,
// earlier files taking priority. godotenv never overwrites variables that are already
// set, so the OS environment wins over every file.
// Returns the files actually loaded.
func LoadDotEnv() []string {
	candidates := []string{".env.local"}
	if env := os.Getenv("APP_ENV"); env != "" {
		candidates = append(candidates, ".env."+env)
	}
	candidates = append(candidates, ".env")

	var loaded []string
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}

// ConfigPath returns the YAML config path for env, defaulting to local
func ConfigPath(env string) string {
	if env == "" {
		env = "local"
	}
	return "configs/config." + env + ".yaml"
}
