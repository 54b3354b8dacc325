package config

import (
	"fmt"
	"net/url"

	"github.com/nodewee/doc-structurer/pkg/types"
)

// ConfigValidator validates configuration
type ConfigValidator struct{}

// NewConfigValidator creates a new configuration validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate checks the configuration for consistency
func (v *ConfigValidator) Validate(c *Config) error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (want debug, info, warn or error)", c.LogLevel)
	}

	if c.SelectorCacheTTLMs < 0 {
		return fmt.Errorf("selector_cache_ttl_ms must not be negative")
	}

	if len(c.Backends) == 0 {
		return fmt.Errorf("at least one backend must be configured")
	}
	for i, desc := range c.Backends {
		if err := v.validateDescriptor(desc); err != nil {
			return fmt.Errorf("backend %d: %w", i, err)
		}
	}
	return nil
}

// validateDescriptor checks one backend descriptor
func (v *ConfigValidator) validateDescriptor(desc types.BackendDescriptor) error {
	if !desc.Kind.Valid() {
		return fmt.Errorf("unknown backend kind %q", desc.Kind)
	}
	if desc.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}
	if desc.TimeoutMs <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", desc.TimeoutMs)
	}
	if desc.Kind == types.BackendRemote {
		u, err := url.Parse(desc.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("remote endpoint %q is not a valid http(s) URL", desc.Endpoint)
		}
	}
	return nil
}
