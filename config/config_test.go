package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	os.Clearenv()

	cfg := NewConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "", cfg.AllowedOrigins)
	assert.Equal(t, "", cfg.TargetHost)
	assert.False(t, cfg.KillSwitch)
	assert.Equal(t, "", cfg.RedisURL)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.CBFailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.CBOpenTimeout)
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	os.Setenv("PROXY_PORT", "9090")
	os.Setenv("ALLOWED_ORIGINS", "https://app.example.org")
	os.Setenv("TARGET_HOST", "https://upstream.example.org")
	os.Setenv("KILL_SWITCH", "true")
	os.Setenv("REDIS_URL", "redis://localhost:6379/0")
	os.Setenv("RATE_LIMIT_RPS", "2.5")
	os.Setenv("RATE_LIMIT_BURST", "20")
	os.Setenv("PROXY_REQUEST_TIMEOUT", "15s")
	os.Setenv("CB_FAILURE_THRESHOLD", "8")
	os.Setenv("CB_OPEN_TIMEOUT", "45s")
	defer os.Clearenv()

	cfg := NewConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://app.example.org", cfg.AllowedOrigins)
	assert.Equal(t, "https://upstream.example.org", cfg.TargetHost)
	assert.True(t, cfg.KillSwitch)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 8, cfg.CBFailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.CBOpenTimeout)
}

func TestNewConfig_KillSwitchRequiresExactLiteral(t *testing.T) {
	os.Setenv("KILL_SWITCH", "TRUE")
	defer os.Clearenv()

	cfg := NewConfig()
	assert.False(t, cfg.KillSwitch)
}

func TestNewConfig_InvalidDuration_UsesDefault(t *testing.T) {
	os.Setenv("PROXY_REQUEST_TIMEOUT", "not-a-duration")
	defer os.Clearenv()

	cfg := NewConfig()
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		os.Clearenv()
		cfg := NewConfig()
		cfg.AllowedOrigins = "https://app.example.org"
		cfg.TargetHost = "https://upstream.example.org"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}, wantErr: false},
		{name: "empty port", modify: func(c *Config) { c.Port = "" }, wantErr: true},
		{name: "empty allowed origins", modify: func(c *Config) { c.AllowedOrigins = "" }, wantErr: true},
		{name: "empty target host", modify: func(c *Config) { c.TargetHost = "" }, wantErr: true},
		{name: "non-positive rate limit", modify: func(c *Config) { c.RateLimitRPS = 0 }, wantErr: true},
		{name: "non-positive burst", modify: func(c *Config) { c.RateLimitBurst = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
