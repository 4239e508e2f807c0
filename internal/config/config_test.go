package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var allEnvVars = []string{
	"TODO_CONFIG_FILE",
	"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "ENVIRONMENT",
	"DB_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE", "DB_SQLITE_PATH",
	"MONGO_URI", "MONGO_COLLECTION",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME", "DB_CONNECT_TIMEOUT",
	"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES", "REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
	"CACHE_ENABLED", "CACHE_TASK_TTL", "CACHE_LIST_TTL", "CACHE_LOCAL_TTL", "CACHE_BREAKER_MAX_FAILURES", "CACHE_BREAKER_TIMEOUT",
	"WORKER_ENABLED", "WORKER_CONCURRENCY", "WORKER_POLL_INTERVAL", "WORKER_QUEUE", "WORKER_MAX_TRIES", "WORKER_RETRY_BASE_DELAY",
	"RATE_LIMIT_ENABLED", "RATE_LIMIT_RPM", "RATE_LIMIT_BURST", "RATE_LIMIT_CLEANUP",
	"CORS_ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "LIST_DEFAULT_LIMIT", "LIST_MAX_LIMIT",
	"TODO_API_URL", "TODO_PAGE_SIZE", "TODO_REQUEST_TIMEOUT", "TODO_LOG_FILE",
}

func setEnvVars(vars map[string]string) {
	for k, v := range vars {
		os.Setenv(k, v)
	}
}

func clearEnvVars(vars []string) {
	for _, k := range vars {
		os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnvVars(allEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Host != "localhost" {
		t.Errorf("Expected default host 'localhost', got %s", config.Server.Host)
	}

	if config.Server.Port != "8080" {
		t.Errorf("Expected default port '8080', got %s", config.Server.Port)
	}

	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}

	if config.Database.Driver != DriverPostgres {
		t.Errorf("Expected default driver 'postgres', got %s", config.Database.Driver)
	}

	if config.Database.Name != "todos" {
		t.Errorf("Expected default DB name 'todos', got %s", config.Database.Name)
	}

	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default max open conns 25, got %d", config.Database.MaxOpenConns)
	}

	if config.Redis.Port != "6379" {
		t.Errorf("Expected default Redis port '6379', got %s", config.Redis.Port)
	}

	if config.Cache.Enabled {
		t.Error("Expected cache to be disabled by default")
	}

	if config.Worker.Enabled {
		t.Error("Expected worker to be disabled by default")
	}

	if !config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be enabled by default")
	}

	if config.List.DefaultLimit != 6 {
		t.Errorf("Expected default list limit 6, got %d", config.List.DefaultLimit)
	}

	if config.List.MaxLimit != 100 {
		t.Errorf("Expected max list limit 100, got %d", config.List.MaxLimit)
	}

	if config.Client.PageSize != 6 {
		t.Errorf("Expected client page size 6, got %d", config.Client.PageSize)
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	clearEnvVars(allEnvVars)
	envVars := map[string]string{
		"HOST":                 "0.0.0.0",
		"PORT":                 "9000",
		"ENVIRONMENT":          "production",
		"DB_DRIVER":            "Postgres",
		"DB_HOST":              "db.example.com",
		"DB_PASSWORD":          "secure_password",
		"DB_MAX_OPEN_CONNS":    "50",
		"REDIS_HOST":           "redis.example.com",
		"REDIS_DB":             "1",
		"CACHE_ENABLED":        "true",
		"CACHE_LIST_TTL":       "90s",
		"WORKER_CONCURRENCY":   "8",
		"RATE_LIMIT_ENABLED":   "false",
		"CORS_ALLOWED_ORIGINS": "https://todo.example.com, https://admin.example.com",
		"READ_TIMEOUT":         "45s",
		"LIST_MAX_LIMIT":       "50",
	}

	setEnvVars(envVars)
	defer clearEnvVars(allEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with custom config, got: %v", err)
	}

	if config.GetServerAddr() != "0.0.0.0:9000" {
		t.Errorf("Expected server addr '0.0.0.0:9000', got %s", config.GetServerAddr())
	}

	if config.Database.Driver != DriverPostgres {
		t.Errorf("Expected driver to be lower-cased to 'postgres', got %s", config.Database.Driver)
	}

	if config.Database.MaxOpenConns != 50 {
		t.Errorf("Expected max open conns 50, got %d", config.Database.MaxOpenConns)
	}

	if config.Redis.DB != 1 {
		t.Errorf("Expected Redis DB 1, got %d", config.Redis.DB)
	}

	if !config.Cache.Enabled {
		t.Error("Expected cache to be enabled")
	}

	if config.Cache.ListTTL != 90*time.Second {
		t.Errorf("Expected list TTL 90s, got %v", config.Cache.ListTTL)
	}

	if config.Worker.Concurrency != 8 {
		t.Errorf("Expected worker concurrency 8, got %d", config.Worker.Concurrency)
	}

	if config.RateLimit.Enabled {
		t.Error("Expected rate limiting to be disabled")
	}

	if len(config.CORS.AllowedOrigins) != 2 || config.CORS.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("Expected two trimmed CORS origins, got %v", config.CORS.AllowedOrigins)
	}

	if config.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %v", config.Server.ReadTimeout)
	}

	if config.List.MaxLimit != 50 {
		t.Errorf("Expected max list limit 50, got %d", config.List.MaxLimit)
	}
}

func TestLoadConfig_ProductionValidation(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{"ENVIRONMENT": "production"})
	defer clearEnvVars(allEnvVars)

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for missing database password in production")
	}

	if err.Error() != "database password is required in production" {
		t.Errorf("Expected specific error message, got: %v", err)
	}
}

func TestLoadConfig_ProductionSQLiteNeedsNoPassword(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{
		"ENVIRONMENT": "production",
		"DB_DRIVER":   "sqlite",
	})
	defer clearEnvVars(allEnvVars)

	if _, err := LoadConfig(); err != nil {
		t.Errorf("Expected sqlite production config to load, got: %v", err)
	}
}

func TestLoadConfig_ProductionLogsJSON(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{
		"ENVIRONMENT":   "production",
		"DB_DRIVER":     "sqlite",
		"TODO_LOG_FILE": "/tmp/todo-tui.log",
	})
	defer clearEnvVars(allEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected config to load, got: %v", err)
	}
	if config.Log.Format != "json" {
		t.Errorf("Expected json log format in production, got %s", config.Log.Format)
	}
	if config.Client.LogFile != "/tmp/todo-tui.log" {
		t.Errorf("Expected client log file from env, got %q", config.Client.LogFile)
	}

	os.Setenv("LOG_FORMAT", "logfmt")
	config, err = LoadConfig()
	if err != nil {
		t.Fatalf("Expected config to load, got: %v", err)
	}
	if config.Log.Format != "logfmt" {
		t.Errorf("Expected explicit LOG_FORMAT to win, got %s", config.Log.Format)
	}
}

func TestLoadConfig_ProductionWildcardCORS(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{
		"ENVIRONMENT":          "production",
		"DB_PASSWORD":          "secret",
		"CORS_ALLOWED_ORIGINS": "*",
	})
	defer clearEnvVars(allEnvVars)

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for wildcard CORS origin in production")
	}
}

func TestLoadConfig_UnsupportedDriver(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{"DB_DRIVER": "oracle"})
	defer clearEnvVars(allEnvVars)

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{
		"DB_MAX_OPEN_CONNS": "lots",
		"CACHE_ENABLED":     "maybe",
		"READ_TIMEOUT":      "soon",
	})
	defer clearEnvVars(allEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected fallback max open conns 25, got %d", config.Database.MaxOpenConns)
	}
	if config.Cache.Enabled {
		t.Error("Expected fallback cache enabled false")
	}
	if config.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Expected fallback read timeout 30s, got %v", config.Server.ReadTimeout)
	}
}

func TestLoadConfig_TOMLFileThenEnv(t *testing.T) {
	clearEnvVars(allEnvVars)
	defer clearEnvVars(allEnvVars)

	path := filepath.Join(t.TempDir(), "todo.toml")
	content := `
[server]
port = "7070"
read_timeout = "12s"

[database]
driver = "sqlite"
sqlite_path = "/tmp/todo-test.db"

[list]
default_limit = 10
max_limit = 40
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	setEnvVars(map[string]string{
		"TODO_CONFIG_FILE": path,
		"PORT":             "7171",
	})

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.Server.Port != "7171" {
		t.Errorf("Expected env to override file port, got %s", config.Server.Port)
	}
	if config.Server.ReadTimeout != 12*time.Second {
		t.Errorf("Expected read timeout 12s from file, got %v", config.Server.ReadTimeout)
	}
	if config.GetDatabaseDSN() != "/tmp/todo-test.db" {
		t.Errorf("Expected sqlite DSN from file, got %s", config.GetDatabaseDSN())
	}
	if config.List.DefaultLimit != 10 || config.List.MaxLimit != 40 {
		t.Errorf("Expected list limits 10/40, got %d/%d", config.List.DefaultLimit, config.List.MaxLimit)
	}
	if config.Server.Host != "localhost" {
		t.Errorf("Expected untouched default host, got %s", config.Server.Host)
	}
}

func TestLoadConfig_MissingTOMLFile(t *testing.T) {
	clearEnvVars(allEnvVars)
	setEnvVars(map[string]string{"TODO_CONFIG_FILE": "/nonexistent/todo.toml"})
	defer clearEnvVars(allEnvVars)

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestConfig_GetDatabaseDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "require",
		},
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require"
	actual := config.GetDatabaseDSN()

	if actual != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, actual)
	}
}

func TestConfig_GetRedisAddr(t *testing.T) {
	config := &Config{
		Redis: RedisConfig{
			Host: "redis.example.com",
			Port: "6380",
		},
	}

	expected := "redis.example.com:6380"
	if actual := config.GetRedisAddr(); actual != expected {
		t.Errorf("Expected Redis addr '%s', got '%s'", expected, actual)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			config := &Config{Server: ServerConfig{Environment: tt.environment}}
			if config.IsProduction() != tt.expected {
				t.Errorf("Expected IsProduction() %v for %q", tt.expected, tt.environment)
			}
		})
	}
}
