package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, time.Hour, cfg.Session.TTL)
	require.Equal(t, 3, cfg.Dispatch.MaxAttempts)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviewd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\nsession:\n  ttl: 30m\n"), 0o644))

	t.Setenv("INTERVIEWD_PORT", "9200")
	t.Setenv("INTERVIEWD_SESSION_TTL", "15m")

	cfg, err := Load(path)
	require.NoError(t, err)
	// env wins over file
	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, 15*time.Minute, cfg.Session.TTL)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
