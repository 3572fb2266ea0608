package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "root:password@tcp(127.0.0.1:3306)/mx_views?charset=utf8mb4&loc=Local&parseTime=true", cfg.DSN)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.False(t, cfg.Redis.Enable)
	assert.Equal(t, "/admin", cfg.AdminURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Preview.Debounce())
	assert.Equal(t, 10, cfg.Preview.LimitClamp)
	assert.Equal(t, 5*time.Minute, cfg.Preview.CacheTTL())
	assert.Equal(t, 24*time.Hour, cfg.Preview.NonceLifetime())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 8080
env: prod
database:
  host: db.internal
  port: 3307
  username: views
  db_name: catalog
  parse_time: false
redis_url: cache.internal:6380/2
cors_allowed_origins: [" https://a.example ", "", "*.b.example"]
admin_url: https://site.example/wp-admin/
preview:
  debounce_ms: 500
  limit_clamp: 25
  nonce_lifetime_hours: 2
  extra_css: ".wpv-loop{gap:1rem}"
`))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "views:password@tcp(db.internal:3307)/catalog?charset=utf8mb4&loc=Local&parseTime=false", cfg.DSN)
	assert.Equal(t, "redis://cache.internal:6380/2", cfg.RedisURL)
	assert.True(t, cfg.Redis.Enable)
	assert.Equal(t, []string{"https://a.example", "*.b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://site.example/wp-admin", cfg.AdminURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Preview.Debounce())
	assert.Equal(t, 25, cfg.Preview.LimitClamp)
	assert.Equal(t, 2*time.Hour, cfg.Preview.NonceLifetime())
	assert.Equal(t, ".wpv-loop{gap:1rem}", cfg.Preview.ExtraCSS)
}

func TestParseExplicitDSNWins(t *testing.T) {
	cfg, err := Parse([]byte("database_url: u:p@tcp(h:1)/d\n"))
	require.NoError(t, err)
	assert.Equal(t, "u:p@tcp(h:1)/d", cfg.DSN)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "nope: 1\n",
		"bad port":       "port: 70000\n",
		"bad db port":    "database:\n  port: -1\n",
		"bad redis db":   "redis:\n  db: -2\n",
		"bad clamp":      "preview:\n  limit_clamp: 0\n",
		"bad debounce":   "preview:\n  debounce_ms: -5\n",
		"bad dsn":        "dsn: \"not a dsn\"\n",
		"malformed yaml": "port: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)

	_, err = Load(filepath.Join(dir, "missing.yml"))
	assert.ErrorContains(t, err, "missing.yml")
}

func TestRedisURLValue(t *testing.T) {
	assert.Equal(t, "rediss://u:p@r:1/3", RedisRuntimeConfig{Host: "r", Port: 1, DB: 3, TLS: true, Username: "u", Password: "p"}.URLValue())
	assert.Equal(t, "redis://:secret@localhost:6379/0", RedisRuntimeConfig{Password: "secret"}.URLValue())
	assert.Equal(t, "redis://x:1/0", RedisRuntimeConfig{URL: "x:1/0"}.URLValue())
}

func TestResolveRuntimePath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "logs")
	assert.Equal(t, abs, ResolveRuntimePath(abs, "fallback"))
	assert.Equal(t, filepath.Join(ExecutableDir(), "logs"), ResolveRuntimePath("", "logs"))
}
