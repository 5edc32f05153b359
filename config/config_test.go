package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/bingo")
	t.Setenv("SERVICE_TOKEN", "internal-token")
	t.Setenv("AUTH_JWT_SECRET", "secret")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 5200, cfg.Port)
	assert.Equal(t, AuthModeJWT, cfg.AuthMode)
	assert.Equal(t, 5*time.Minute, cfg.ViewCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.ScoreReconcileInterval)
	assert.Equal(t, 8, cfg.PushConcurrency)
	assert.False(t, cfg.AllowOwnerSelfValidation)
	assert.False(t, cfg.PushEnabled())
	assert.False(t, cfg.AvatarUploadsEnabled())
}

func TestParseRequiresDatabaseURL(t *testing.T) {
	t.Setenv("SERVICE_TOKEN", "internal-token")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestValidateAuthMode(t *testing.T) {
	setRequired(t)

	t.Setenv("AUTH_MODE", "remote")
	_, err := Parse()
	assert.ErrorContains(t, err, "AUTH_SERVICE_URL")

	t.Setenv("AUTH_SERVICE_URL", "https://auth.example.com")
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, AuthModeRemote, cfg.AuthMode)

	t.Setenv("AUTH_MODE", "basic")
	_, err = Parse()
	assert.ErrorContains(t, err, "unknown AUTH_MODE")
}

func TestAllowedOriginsList(t *testing.T) {
	cfg := Config{AllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOriginsList())
}
