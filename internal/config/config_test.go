package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9293, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 10*time.Second, cfg.Consult.AdvisorTimeout.Duration())
	assert.Equal(t, 70, cfg.Gate.Threshold)
	assert.Equal(t, 10, cfg.Gate.MarkerPenalty)
	assert.Equal(t, time.Hour, cfg.Cache.StatusTTL.Duration())
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.False(t, cfg.NATS.Enabled)
	assert.Equal(t, "flowd", cfg.Telemetry.ServiceName)
	assert.Equal(t, "grpc", cfg.Telemetry.Protocol)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.yaml")
	content := `
server:
  port: 8080
gate:
  threshold: 85
  fail_on_gate: true
nats:
  enabled: true
  url: nats://broker:4222
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 85, cfg.Gate.Threshold)
	assert.True(t, cfg.Gate.FailOnGate)
	assert.True(t, cfg.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))

	t.Setenv("FLOWD_SERVER_PORT", "7070")
	t.Setenv("FLOWD_GATE_THRESHOLD", "90")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 90, cfg.Gate.Threshold)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("valid defaults", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad threshold", func(t *testing.T) {
		cfg := base()
		cfg.Gate.Threshold = 101
		assert.Error(t, cfg.Validate())
	})

	t.Run("github enabled without token", func(t *testing.T) {
		cfg := base()
		cfg.GitHub.Enabled = true
		cfg.GitHub.Owner = "fyrsmithlabs"
		cfg.GitHub.Repo = "flowd"
		assert.Error(t, cfg.Validate())
	})

	t.Run("github fully configured", func(t *testing.T) {
		cfg := base()
		cfg.GitHub.Enabled = true
		cfg.GitHub.Token = Secret("ghp_test")
		cfg.GitHub.Owner = "fyrsmithlabs"
		cfg.GitHub.Repo = "flowd"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("telemetry enabled without endpoint", func(t *testing.T) {
		cfg := base()
		cfg.Telemetry.Enabled = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown telemetry protocol", func(t *testing.T) {
		cfg := base()
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = "localhost:4317"
		cfg.Telemetry.Protocol = "thrift"
		assert.Error(t, cfg.Validate())
	})
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "ghp_supersecret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")

	var empty Secret
	assert.False(t, empty.IsSet())
}
