package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr)
	assert.Equal(t, int64(1), cfg.MaxConnections)
	assert.Equal(t, 8765, cfg.WorkerPort)
	assert.Equal(t, time.Minute, cfg.ReadyTimeout)
	assert.Equal(t, "WebSocket server started successfully", cfg.ReadyMarker)
	assert.Equal(t, 20*time.Second, cfg.LicenseInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACEBRIDGE_MAX_CONNECTIONS", "4")
	t.Setenv("FACEBRIDGE_ADDR", "127.0.0.1:9090")
	t.Setenv("FACEBRIDGE_READY_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(4), cfg.MaxConnections)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.ReadyTimeout)
}

func TestLoadRejectsZeroCapacity(t *testing.T) {
	t.Setenv("FACEBRIDGE_MAX_CONNECTIONS", "0")

	_, err := Load()
	assert.Error(t, err)
}
