package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, ":8080", cfg.EndpointAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 10*24*time.Hour, cfg.RefreshTokenValidityDuration)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.False(t, cfg.SecureCookies)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.NotEmpty(t, cfg.AccessTokenSecret)
	assert.NotEmpty(t, cfg.RefreshTokenSecret)
}

func TestParseEnv_Overlay(t *testing.T) {
	t.Setenv("ADDRESS", ":9999")
	t.Setenv("ACCESS_TOKEN_SECRET", "env-access")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "30m")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("SECURE_COOKIES", "true")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddr)
	assert.Equal(t, "env-access", cfg.AccessTokenSecret)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.True(t, cfg.SecureCookies)

	// Untouched keys keep their defaults.
	assert.Equal(t, "refresh-secret", cfg.RefreshTokenSecret)
}

func TestParseEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRY", "soon")
	t.Setenv("BCRYPT_COST", "high")
	t.Setenv("SECURE_COOKIES", "maybe")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, 15*time.Minute, cfg.AccessTokenValidityDuration)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.SecureCookies)
}
