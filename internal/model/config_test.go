package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Notifications.PollInterval())
	assert.Equal(t, 5*time.Second, cfg.Notifications.ToastDelay())
	assert.Equal(t, 50, cfg.Notifications.RetainLimit)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout())
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
api:
  base_url: https://api.institute.test
notifications:
  poll_interval_sec: 15
  retain_limit: 0
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.institute.test", cfg.API.BaseURL)
	assert.Equal(t, 15, cfg.Notifications.PollIntervalSec)
	assert.Equal(t, 50, cfg.Notifications.RetainLimit, "non-positive limit falls back")
	assert.Equal(t, 3, cfg.API.MaxRetries)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultAppConfig()
	cfg.API.BaseURL = "https://saved.test"
	cfg.Notifications.ToastSec = 9
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://saved.test", loaded.API.BaseURL)
	assert.Equal(t, 9, loaded.Notifications.ToastSec)
}

func TestSession_Authenticated(t *testing.T) {
	tests := []struct {
		name string
		s    Session
		want bool
	}{
		{"role and token", Session{Role: RoleTeacher, HasToken: true}, true},
		{"no token", Session{Role: RoleTeacher}, false},
		{"no role", Session{HasToken: true}, false},
		{"empty", Session{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Authenticated())
		})
	}
}

func TestRoleKey(t *testing.T) {
	assert.Equal(t, "guest", RoleKey(""))
	assert.Equal(t, "student", Session{Role: RoleStudent}.RoleKey())
	assert.Equal(t, RoleTeacher, ParseRole("  Teacher "))
}
