package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// ResolveCredentials loads an optional dotenv file and copies credential
// values from the environment into cfg. Existing environment variables win
// over dotenv entries.
func ResolveCredentials(cfg *Config, configPath string) ([]Warning, error) {
	warnings := make([]Warning, 0)

	dotenvPath, explicit := dotenvCandidate(cfg.Credentials.DotenvPath, configPath)
	if dotenvPath != "" {
		err := godotenv.Load(dotenvPath)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && !explicit:
		case errors.Is(err, os.ErrNotExist):
			warnings = append(warnings, Warning{Message: fmt.Sprintf("dotenv file %q not found", dotenvPath)})
		default:
			return nil, fmt.Errorf("load dotenv %q: %w", dotenvPath, err)
		}
	}

	cfg.Credentials.APIKey = strings.TrimSpace(os.Getenv(cfg.Credentials.APIKeyEnv))
	if cfg.Credentials.APIKey == "" {
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("%s is not set; cloud recognition and synthesis will fail", cfg.Credentials.APIKeyEnv),
		})
	}

	if name := strings.TrimSpace(cfg.Diagnostics.SentryDSNEnv); name != "" {
		cfg.Diagnostics.SentryDSN = strings.TrimSpace(os.Getenv(name))
	}

	return warnings, nil
}

func dotenvCandidate(configured string, configPath string) (string, bool) {
	if configured != "" {
		if !filepath.IsAbs(configured) && configPath != "" {
			configured = filepath.Join(filepath.Dir(configPath), configured)
		}
		return configured, true
	}
	if configPath == "" {
		return "", false
	}
	return filepath.Join(filepath.Dir(configPath), ".env"), false
}
