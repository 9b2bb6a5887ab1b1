// Package config provides configuration loading for flowd.
//
// Configuration is loaded from a YAML file and overridden by
// environment variables; every field has a working default so the
// daemon starts with no configuration at all.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete flowd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Workspace WorkspaceConfig `koanf:"workspace"`
	Consult   ConsultConfig   `koanf:"consult"`
	Gate      GateConfig      `koanf:"gate"`
	Cache     CacheConfig     `koanf:"cache"`
	NATS      NATSConfig      `koanf:"nats"`
	GitHub    GitHubConfig    `koanf:"github"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// WorkspaceConfig locates the artifact workspace. RepoPath is the git
// repository the automation stage commits into; Dir (under RepoPath)
// is where executors write artifacts.
type WorkspaceConfig struct {
	RepoPath string `koanf:"repo_path"`
	Dir      string `koanf:"dir"`
}

// ConsultConfig tunes the consultation fan-out.
type ConsultConfig struct {
	AdvisorTimeout Duration `koanf:"advisor_timeout"`
}

// GateConfig tunes the quality gate.
type GateConfig struct {
	Threshold     int  `koanf:"threshold"`
	MarkerPenalty int  `koanf:"marker_penalty"`
	FailOnGate    bool `koanf:"fail_on_gate"`
}

// CacheConfig tunes the ephemeral status cache.
type CacheConfig struct {
	StatusTTL     Duration `koanf:"status_ttl"`
	SweepInterval Duration `koanf:"sweep_interval"`
}

// NATSConfig holds the event/report/incident transport settings.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
}

// GitHubConfig enables the GitHub incident reporter.
type GitHubConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   Secret `koanf:"token"`
	Owner   string `koanf:"owner"`
	Repo    string `koanf:"repo"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"`
	Insecure    bool   `koanf:"insecure"`
}

// applyDefaults fills zero-valued fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9293
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(15 * time.Second)
	}
	if cfg.Workspace.RepoPath == "" {
		cfg.Workspace.RepoPath = "./workspace"
	}
	if cfg.Workspace.Dir == "" {
		cfg.Workspace.Dir = "artifacts"
	}
	if cfg.Consult.AdvisorTimeout == 0 {
		cfg.Consult.AdvisorTimeout = Duration(10 * time.Second)
	}
	if cfg.Gate.Threshold == 0 {
		cfg.Gate.Threshold = 70
	}
	if cfg.Gate.MarkerPenalty == 0 {
		cfg.Gate.MarkerPenalty = 10
	}
	if cfg.Cache.StatusTTL == 0 {
		cfg.Cache.StatusTTL = Duration(time.Hour)
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = Duration(time.Minute)
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "flowd"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Gate.Threshold < 0 || c.Gate.Threshold > 100 {
		return fmt.Errorf("gate threshold must be 0-100, got %d", c.Gate.Threshold)
	}
	if c.GitHub.Enabled {
		if !c.GitHub.Token.IsSet() {
			return errors.New("github.token is required when the github reporter is enabled")
		}
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			return errors.New("github.owner and github.repo are required when the github reporter is enabled")
		}
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("unknown telemetry protocol: %s", c.Telemetry.Protocol)
		}
	}
	return nil
}
