package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rf-server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "static", cfg.Provider.Kind)
	assert.Equal(t, "1U", cfg.Chassis.ID)
	assert.Equal(t, "file", cfg.EventService.Store)
	assert.Equal(t, "/var/tmp/subscriptions.json", cfg.EventService.SubscriptionsPath)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.TLSEnabled())

	pub := cfg.Publisher()
	assert.True(t, pub.ServiceEnabled)
	assert.Equal(t, 3, pub.RetryAttempts)
	assert.Equal(t, 5*time.Second, pub.RetryInterval)
	assert.Equal(t, 8, pub.Workers)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9443"
chassis:
  id: "2U"
log:
  level: debug
  format: console
event_service:
  service_enabled: false
  retry_attempts: 5
  retry_interval_seconds: 1
  store: sqlite
  database_path: /tmp/subs.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9443", cfg.ListenAddr)
	assert.Equal(t, "2U", cfg.Chassis.ID)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.EventService.ServiceEnabled)
	assert.Equal(t, 5, cfg.EventService.RetryAttempts)
	assert.Equal(t, "sqlite", cfg.EventService.Store)
	assert.Equal(t, 8, cfg.EventService.Workers)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RFD_EVENT_SERVICE_RETRY_ATTEMPTS", "7")
	t.Setenv("RFD_LISTEN_ADDR", ":7000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.EventService.RetryAttempts)
	assert.Equal(t, ":7000", cfg.ListenAddr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"zero retries":   "event_service:\n  retry_attempts: 0\n",
		"negative sleep": "event_service:\n  retry_interval_seconds: -1\n",
		"no workers":     "event_service:\n  workers: 0\n",
		"bad store":      "event_service:\n  store: redis\n",
		"bad provider":   "provider:\n  kind: ipmi\n",
		"half tls":       "tls_cert_file: /tmp/cert.pem\n",
	}
	for name, body := range cases {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, name)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "listen_addr: [unterminated\n"))
	assert.Error(t, err)
}
