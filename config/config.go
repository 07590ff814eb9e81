package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is used when no blog API base URL is configured.
const DefaultAPIURL = "http://localhost:3001"

// APIURLEnvKeys lists the environment variables that select the blog API base URL, in priority order.
var APIURLEnvKeys = []string{"BLOG_API_URL", "VITE_API_URL"}

// AppConfig holds environment driven configuration values.
type AppConfig struct {
	AppPort            string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	// Blog API; APIURL is only the file/boot value, see APIBaseURL for per-call resolution
	APIURL string
	// Query cache
	QueryStaleSeconds int
	QueryGCSeconds    int
	// Redis second-tier cache
	RedisEnabled  bool
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	RedisPrefix   string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var (
	cfg    AppConfig
	loaded bool
	mu     sync.Mutex
)

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	mu.Lock()
	defer mu.Unlock()
	if loaded {
		return cfg
	}

	// Precedence: .env (never overriding the real environment) -> config/config.json -> defaults -> env
	_ = godotenv.Load()

	var next AppConfig
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &next); err != nil {
		log.Printf("invalid config/config.json, ignoring: %v", err)
	}
	applyDefaults(&next)
	applyEnvOverrides(&next)

	cfg = next
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.Lock()
	done := loaded
	mu.Unlock()
	if !done {
		return Load()
	}
	return cfg
}

// Reset forgets the cached configuration so the next Get reloads it.
func Reset() {
	mu.Lock()
	loaded = false
	cfg = AppConfig{}
	mu.Unlock()
}

// APIBaseURL resolves the blog API base URL on every call so tests and operators
// can repoint it without a restart. A trailing slash is trimmed.
func APIBaseURL() string {
	raw := ""
	for _, key := range APIURLEnvKeys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			raw = v
			break
		}
	}
	if raw == "" {
		mu.Lock()
		if loaded {
			raw = strings.TrimSpace(cfg.APIURL)
		}
		mu.Unlock()
	}
	if raw == "" {
		raw = DefaultAPIURL
	}
	return strings.TrimSuffix(raw, "/")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadJSONConfig reads JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if s, ok := m[key].(string); ok {
			return s
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		if f, ok := m[key].(float64); ok {
			return int(f)
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	getStringSlice := func(m map[string]any, key string) []string {
		arr, ok := m[key].([]any)
		if !ok {
			return nil
		}
		res := make([]string, 0, len(arr))
		for _, it := range arr {
			if s, ok := it.(string); ok {
				res = append(res, s)
			}
		}
		return res
	}

	// Grouped sections; a flat file is read as a single "app" section.
	section := func(name string) map[string]any {
		if m, ok := raw[name].(map[string]any); ok {
			return m
		}
		return raw
	}

	app := section("app")
	out.AppPort = getString(app, "AppPort")
	out.GinMode = getString(app, "GinMode")
	out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
	out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")

	api := section("api")
	out.APIURL = getString(api, "APIURL")

	query := section("query")
	out.QueryStaleSeconds = getInt(query, "StaleSeconds")
	out.QueryGCSeconds = getInt(query, "GCSeconds")

	redis := section("redis")
	out.RedisEnabled = getBool(redis, "RedisEnabled")
	out.RedisHost = getString(redis, "RedisHost")
	out.RedisPort = getInt(redis, "RedisPort")
	out.RedisDB = getInt(redis, "RedisDB")
	out.RedisPassword = getString(redis, "RedisPassword")
	out.RedisPrefix = getString(redis, "RedisPrefix")

	logging := section("log")
	out.LogLevel = getString(logging, "LogLevel")
	out.LogPath = getString(logging, "LogPath")
	out.LogMaxSizeMB = getInt(logging, "LogMaxSizeMB")
	out.LogMaxBackups = getInt(logging, "LogMaxBackups")
	out.LogMaxAgeDays = getInt(logging, "LogMaxAgeDays")
	out.LogCompress = getBool(logging, "LogCompress")

	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.QueryStaleSeconds == 0 {
		c.QueryStaleSeconds = 30
	}
	if c.QueryGCSeconds == 0 {
		c.QueryGCSeconds = 300
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = "blogdeck:query:"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_PORT", ""); v != "" {
		c.AppPort = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	if v := getEnv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	// API URL env keys are deliberately not folded in here; APIBaseURL reads them per call.
	if v := getEnv("QUERY_STALE_SECONDS", ""); v != "" {
		c.QueryStaleSeconds = mustParseInt(v)
	}
	if v := getEnv("QUERY_GC_SECONDS", ""); v != "" {
		c.QueryGCSeconds = mustParseInt(v)
	}
	if v := getEnv("REDIS_ENABLED", ""); v != "" {
		c.RedisEnabled = v == "true"
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("REDIS_PREFIX", ""); v != "" {
		c.RedisPrefix = v
	}
	// Logging env overrides
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_MAX_SIZE_MB", ""); v != "" {
		c.LogMaxSizeMB = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_BACKUPS", ""); v != "" {
		c.LogMaxBackups = mustParseInt(v)
	}
	if v := getEnv("LOG_MAX_AGE_DAYS", ""); v != "" {
		c.LogMaxAgeDays = mustParseInt(v)
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = v == "true"
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(val)
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
