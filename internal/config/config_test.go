package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "contacts.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 0.7, cfg.Verify.ValidThreshold, 0.001)
	assert.Equal(t, 10, cfg.Verify.Email.DNSTimeoutSecs)
	assert.Equal(t, 10, cfg.Verify.Email.SMTPTimeoutSecs)
	assert.Equal(t, "verification.test", cfg.Verify.Email.SMTPHelloDomain)
	assert.Equal(t, 5, cfg.Verify.Email.MaxSuggestions)
	assert.Equal(t, "US", cfg.Verify.Phone.DefaultRegion)
	assert.Equal(t, 100, cfg.Batch.ContactDelayMs)
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentBatches)
	assert.InDelta(t, 5, cfg.Rate.DNSRPS, 0.001)
	assert.InDelta(t, 2, cfg.Rate.SMTPRPS, 0.001)
	assert.InDelta(t, 5, cfg.Rate.RegistryRPS, 0.001)
	assert.Equal(t, "https://login.salesforce.com", cfg.Salesforce.LoginURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.False(t, cfg.Salesforce.HasCredentials())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/contacts
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/contacts", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Batch.Workers)
	// Defaults still apply for unset values
	assert.Equal(t, 100, cfg.Batch.ContactDelayMs)
	assert.InDelta(t, 0.7, cfg.Verify.ValidThreshold, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CONTACT_STORE_DRIVER", "postgres")
	t.Setenv("CONTACT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("CONTACT_SERVER_PORT", "3000")
	t.Setenv("CONTACT_VERIFY_PHONE_DEFAULT_REGION", "GB")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "GB", cfg.Verify.Phone.DefaultRegion)
}

func TestSalesforceHasCredentials(t *testing.T) {
	cfg := SalesforceConfig{ClientID: "id", Username: "user@example.com", KeyPath: "/tmp/key.pem"}
	assert.True(t, cfg.HasCredentials())

	cfg.KeyPath = ""
	assert.False(t, cfg.HasCredentials())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}
