package testsupport

import (
	"path/filepath"
	"testing"

	"songforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Generator.BaseURL = "http://127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithAPIToken sets the bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithGeneratorURL points the generator client at the given base URL,
// typically an httptest server.
func WithGeneratorURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Generator.BaseURL = url
	}
}

// WithAnalyzerURL points the analyzer client at the given base URL.
func WithAnalyzerURL(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Analyzer.BaseURL = url
	}
}

// WithIdleTimeoutMinutes overrides the session idle expiry window.
func WithIdleTimeoutMinutes(minutes int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sessions.IdleTimeoutMinutes = minutes
	}
}
