package app

import (
	"errors"
	"fmt"
	"net/url"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// PipelinePaths are files, directories or glob patterns of pipeline
	// files.
	PipelinePaths []string

	// Root is the environment root. Empty means environment.DefaultRoot.
	Root            string
	MainEnvironment string
	WorkerCommand   string

	// UIURL is the socket.io server run events are forwarded to.
	UIURL string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
}

// NewConfig validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, errors.New("healthcheck-port must be between 0 and 65535")
	}
	if cfg.UIURL != "" {
		u, err := url.Parse(cfg.UIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid ui-url %q: must be an absolute URL", cfg.UIURL)
		}
	}
	return &cfg, nil
}

// requirePipeline reports a missing pipeline path for commands that need one.
func (c *Config) requirePipeline() error {
	if len(c.PipelinePaths) == 0 {
		return errors.New("a pipeline path is required")
	}
	return nil
}
