package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_TOKEN_SECRET", "auth-secret")
	t.Setenv("SITE_TOKEN_SECRET", "site-secret")
	t.Setenv("IP_HASH_SECRET", "ip-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 60, cfg.GlobalIPLimit)
	assert.Equal(t, 20, cfg.AuthIPLimit)
}

func TestLoadConfigRejectsSharedSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SITE_TOKEN_SECRET", "auth-secret")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SECRET", "")
	t.Setenv("SITE_TOKEN_SECRET", "site-secret")
	t.Setenv("IP_HASH_SECRET", "ip-secret")

	_, err := LoadConfig()
	assert.Error(t, err)
}
