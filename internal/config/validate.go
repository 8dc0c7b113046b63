package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateSessions(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGenerator() error {
	if c.Generator.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/songforge/config.toml"
		}
		return fmt.Errorf("generator.base_url is required. Edit %s (create with 'songforge config init')", defaultPath)
	}
	if err := validateBaseURL("generator.base_url", c.Generator.BaseURL); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	if c.Analyzer.BaseURL == "" {
		return nil
	}
	return validateBaseURL("analyzer.base_url", c.Analyzer.BaseURL)
}

func (c *Config) validateSessions() error {
	if c.Sessions.IdleTimeoutMinutes <= 0 {
		return errors.New("sessions.idle_timeout_minutes must be positive")
	}
	if c.Sessions.SweepIntervalSeconds <= 0 {
		return errors.New("sessions.sweep_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.RequestsPerMinute <= 0 {
		return errors.New("limits.requests_per_minute must be positive")
	}
	if c.Limits.Burst <= 0 {
		return errors.New("limits.burst must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	return nil
}

func validateBaseURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
