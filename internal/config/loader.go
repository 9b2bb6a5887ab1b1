package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces flowd environment variables.
const envPrefix = "FLOWD_"

// Load loads configuration with the precedence (highest first):
//
//  1. Environment variables (FLOWD_SERVER_PORT, FLOWD_NATS_URL, ...)
//  2. YAML config file (configPath, skipped when empty or absent)
//  3. Defaults
//
// Environment variables map section-first onto the YAML layout:
//
//	FLOWD_SERVER_PORT        -> server.port
//	FLOWD_GATE_FAIL_ON_GATE  -> gate.fail_on_gate
//	FLOWD_GITHUB_TOKEN       -> github.token
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// FLOWD_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout:
		// the first underscore separates the section, the rest stays
		// as the field name.
		trimmed := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(trimmed, "_", 2)
		if len(parts) == 1 {
			return trimmed
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
