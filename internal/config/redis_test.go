package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTLSConfig(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("REDIS_TLS", "")
		t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "")
		assert.Nil(t, redisTLSConfig())
	})

	t.Run("enabled verifies the certificate", func(t *testing.T) {
		t.Setenv("REDIS_TLS", "true")
		t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "")
		cfg := redisTLSConfig()
		require.NotNil(t, cfg)
		assert.False(t, cfg.InsecureSkipVerify)
	})

	t.Run("skipping verification is a separate opt-in", func(t *testing.T) {
		t.Setenv("REDIS_TLS", "1")
		t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "true")
		cfg := redisTLSConfig()
		require.NotNil(t, cfg)
		assert.True(t, cfg.InsecureSkipVerify)
	})
}
