package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("missing.json")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 150*time.Millisecond, cfg.Onboarding.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Onboarding.TargetSectionTTL)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"database": {"driver": "memory"},
		"onboarding": {"main_app_url": "https://app.example/home"}
	}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JWT_SECRET=from-dotenv\n"), 0o600))

	t.Cleanup(func() { os.Unsetenv("JWT_SECRET") })
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("ONBOARDING_DEBOUNCE", "300ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "https://app.example/home", cfg.Onboarding.MainAppURL)
	assert.Equal(t, 300*time.Millisecond, cfg.Onboarding.Debounce)
	assert.Equal(t, "from-dotenv", cfg.Security.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"database": {"driver": "sqlite"}}`), 0o600))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unknown DATABASE_DRIVER")

	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "portal", Password: "pw", Host: "db", Port: 5432, DBName: "portal", SSLMode: "disable"}
	assert.Equal(t, "postgres://portal:pw@db:5432/portal?sslmode=disable", db.GetDatabaseURL())
}
