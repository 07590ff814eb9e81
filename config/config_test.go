package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearAPIEnv(t *testing.T) {
	for _, key := range APIURLEnvKeys {
		t.Setenv(key, "")
	}
}

func TestAPIBaseURLDefault(t *testing.T) {
	Reset()
	clearAPIEnv(t)
	assert.Equal(t, DefaultAPIURL, APIBaseURL())

	t.Setenv("BLOG_API_URL", "   ")
	assert.Equal(t, DefaultAPIURL, APIBaseURL(), "blank value falls back to the default")
}

func TestAPIBaseURLResolvedPerCall(t *testing.T) {
	Reset()
	clearAPIEnv(t)

	t.Setenv("VITE_API_URL", "http://vite.example/")
	assert.Equal(t, "http://vite.example", APIBaseURL())

	t.Setenv("BLOG_API_URL", "http://blog.example")
	assert.Equal(t, "http://blog.example", APIBaseURL(), "BLOG_API_URL wins over VITE_API_URL")

	t.Setenv("BLOG_API_URL", "http://other.example/")
	assert.Equal(t, "http://other.example", APIBaseURL())
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Chdir(t.TempDir())
	t.Setenv("APP_PORT", "9090")
	t.Setenv("QUERY_STALE_SECONDS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")

	c := Load()
	assert.Equal(t, "9090", c.AppPort)
	assert.Equal(t, 5, c.QueryStaleSeconds)
	assert.Equal(t, 300, c.QueryGCSeconds)
	assert.Equal(t, "release", c.GinMode)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins)
	assert.False(t, c.RedisEnabled)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadJSONConfigGrouped(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	clearAPIEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	body := `{
		"app": {"AppPort": "7000", "RateLimitPerMinute": 12},
		"api": {"APIURL": "http://file.example/"},
		"query": {"StaleSeconds": 60},
		"redis": {"RedisEnabled": true, "RedisPort": 6380},
		"log": {"LogLevel": "debug"}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.json"), []byte(body), 0o644))

	c := Load()
	assert.Equal(t, "7000", c.AppPort)
	assert.Equal(t, 12, c.RateLimitPerMinute)
	assert.Equal(t, 60, c.QueryStaleSeconds)
	assert.True(t, c.RedisEnabled)
	assert.Equal(t, 6380, c.RedisPort)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "http://file.example", APIBaseURL())

	t.Setenv("BLOG_API_URL", "http://env.example")
	assert.Equal(t, "http://env.example", APIBaseURL(), "environment wins over the config file")
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a ,, b "))
	assert.Empty(t, splitAndTrim(","))
}
