package main

import (
	"fmt"
	"net/url"

	"github.com/phrazzld/qagen/internal/config"
)

// loadAppConfig loads configuration from path, or from defaults, an optional
// ./config.yaml and the environment when path is empty.
func loadAppConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// maskDatabaseURL hides the password of a connection URL for logging.
func maskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "****")
		}
		return parsed.String()
	}
	return dbURL
}
