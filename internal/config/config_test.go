package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(100), cfg.Business.InitialPoints)
	assert.Equal(t, int64(20), cfg.Business.OrderReward)
	assert.Equal(t, 100, cfg.Business.CreditScoreInitial)
	assert.Equal(t, `^\d{10,11}$`, cfg.Business.StudentIDPattern)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: 9090
database:
  driver: mysql
  host: db.local
  port: 3307
  user: unirun
  password: secret
  database: unirun
business:
  order_reward: 30
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	t.Setenv("UNIRUN_AUTH_JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(30), cfg.Business.OrderReward)
	assert.Equal(t, int64(100), cfg.Business.InitialPoints)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "unirun:secret@tcp(db.local:3307)/unirun?charset=utf8mb4&parseTime=True&loc=Local", cfg.Database.DSN())
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [port"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"zero reward", func(c *Config) { c.Business.OrderReward = 0 }},
		{"negative initial points", func(c *Config) { c.Business.InitialPoints = -1 }},
		{"credit out of range", func(c *Config) { c.Business.CreditScoreInitial = 101 }},
		{"bad pattern", func(c *Config) { c.Business.StudentIDPattern = "(" }},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"kafka without brokers", func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, valid().Validate())
}
