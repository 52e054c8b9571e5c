/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables,
including the running environment, port, CORS allowed origins, and identity verification mode.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Identity verification modes.
const (
	// IdentityModeOpen accepts any claimed identity unchecked (demo default).
	IdentityModeOpen = "open"

	// IdentityModeToken requires a signed identity token on identify.
	IdentityModeToken = "token"
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string
	IdentityMode   string
	TokenSecret    string
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary
// type conversions and validation.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	// Environment
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	// Port
	portStr := os.Getenv("PORT")
	if portStr == "" {
		portStr = "3000"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT environment variable: %w", err)
	}
	cfg.Port = port

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the valid range (1-65535)", cfg.Port)
	}

	// --- Security Settings ---
	// AllowedOrigins
	originsStr := os.Getenv("ALLOWED_ORIGINS")
	if originsStr != "" {
		origins := strings.Split(originsStr, ",")
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{}
	}

	// IdentityMode
	cfg.IdentityMode = os.Getenv("IDENTITY_MODE")
	if cfg.IdentityMode == "" {
		cfg.IdentityMode = IdentityModeOpen
	}
	if cfg.IdentityMode != IdentityModeOpen && cfg.IdentityMode != IdentityModeToken {
		return nil, fmt.Errorf("invalid IDENTITY_MODE %q (expected %q or %q)",
			cfg.IdentityMode, IdentityModeOpen, IdentityModeToken)
	}

	// TokenSecret
	tokenSecret := os.Getenv("TOKEN_SECRET")
	if cfg.IdentityMode == IdentityModeToken {
		if tokenSecret == "" {
			if cfg.Environment == "development" {
				tokenSecret = "your_default_insecure_secret_key_change_me"
			} else {
				return nil, fmt.Errorf("TOKEN_SECRET environment variable is required in %s environment when IDENTITY_MODE=token", cfg.Environment)
			}
		}
	}
	cfg.TokenSecret = tokenSecret

	return cfg, nil
}
