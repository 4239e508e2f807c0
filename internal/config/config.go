package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

type Config struct {
	Server    ServerConfig    `json:"server" toml:"server"`
	Database  DatabaseConfig  `json:"database" toml:"database"`
	Redis     RedisConfig     `json:"redis" toml:"redis"`
	Cache     CacheConfig     `json:"cache" toml:"cache"`
	Worker    WorkerConfig    `json:"worker" toml:"worker"`
	RateLimit RateLimitConfig `json:"rate_limit" toml:"rate_limit"`
	CORS      CORSConfig      `json:"cors" toml:"cors"`
	Log       LogConfig       `json:"log" toml:"log"`
	List      ListConfig      `json:"list" toml:"list"`
	Client    ClientConfig    `json:"client" toml:"client"`
}

type ServerConfig struct {
	Host            string        `json:"host" toml:"host"`
	Port            string        `json:"port" toml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" toml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" toml:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" toml:"shutdown_timeout"`
	Environment     string        `json:"environment" toml:"environment"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver" toml:"driver"`
	Host            string        `json:"host" toml:"host"`
	Port            string        `json:"port" toml:"port"`
	User            string        `json:"user" toml:"user"`
	Password        string        `json:"password" toml:"password"`
	Name            string        `json:"name" toml:"name"`
	SSLMode         string        `json:"ssl_mode" toml:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path" toml:"sqlite_path"`
	MongoURI        string        `json:"mongo_uri" toml:"mongo_uri"`
	MongoCollection string        `json:"mongo_collection" toml:"mongo_collection"`
	MaxOpenConns    int           `json:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" toml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" toml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `json:"connect_timeout" toml:"connect_timeout"`
}

type RedisConfig struct {
	Host         string        `json:"host" toml:"host"`
	Port         string        `json:"port" toml:"port"`
	Password     string        `json:"password" toml:"password"`
	DB           int           `json:"db" toml:"db"`
	PoolSize     int           `json:"pool_size" toml:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns" toml:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries" toml:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout" toml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" toml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" toml:"write_timeout"`
}

type CacheConfig struct {
	Enabled            bool          `json:"enabled" toml:"enabled"`
	TaskTTL            time.Duration `json:"task_ttl" toml:"task_ttl"`
	ListTTL            time.Duration `json:"list_ttl" toml:"list_ttl"`
	LocalTTL           time.Duration `json:"local_ttl" toml:"local_ttl"`
	BreakerMaxFailures int           `json:"breaker_max_failures" toml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `json:"breaker_timeout" toml:"breaker_timeout"`
}

type WorkerConfig struct {
	Enabled        bool          `json:"enabled" toml:"enabled"`
	Concurrency    int           `json:"concurrency" toml:"concurrency"`
	PollInterval   time.Duration `json:"poll_interval" toml:"poll_interval"`
	Queue          string        `json:"queue" toml:"queue"`
	MaxTries       int           `json:"max_tries" toml:"max_tries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" toml:"retry_base_delay"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled" toml:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute" toml:"requests_per_minute"`
	BurstSize       int           `json:"burst_size" toml:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval" toml:"cleanup_interval"`
}

type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins" toml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

type ListConfig struct {
	DefaultLimit int `json:"default_limit" toml:"default_limit"`
	MaxLimit     int `json:"max_limit" toml:"max_limit"`
}

type ClientConfig struct {
	BaseURL        string        `json:"base_url" toml:"base_url"`
	PageSize       int           `json:"page_size" toml:"page_size"`
	RequestTimeout time.Duration `json:"request_timeout" toml:"request_timeout"`
	// LogFile receives the terminal client's logs; empty discards them.
	LogFile string `json:"log_file" toml:"log_file"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            "8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Driver:          DriverPostgres,
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "todos",
			SSLMode:         "disable",
			SQLitePath:      "todos.db",
			MongoURI:        "mongodb://127.0.0.1:27017",
			MongoCollection: "todos",
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
			ConnectTimeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         "6379",
			PoolSize:     10,
			MinIdleConns: 5,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:            false,
			TaskTTL:            30 * time.Minute,
			ListTTL:            5 * time.Minute,
			LocalTTL:           30 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Worker: WorkerConfig{
			Enabled:        false,
			Concurrency:    2,
			PollInterval:   5 * time.Second,
			Queue:          "todo_jobs",
			MaxTries:       3,
			RetryBaseDelay: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			RequestsPerMin:  300,
			BurstSize:       30,
			CleanupInterval: 10 * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		List: ListConfig{
			DefaultLimit: 6,
			MaxLimit:     100,
		},
		Client: ClientConfig{
			BaseURL:        "http://localhost:8080",
			PageSize:       6,
			RequestTimeout: 10 * time.Second,
		},
	}
}

// LoadConfig builds the configuration from defaults, then the TOML file named
// by TODO_CONFIG_FILE (if any), then environment variables.
func LoadConfig() (*Config, error) {
	config := defaultConfig()

	if path := os.Getenv("TODO_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	applyEnv(config)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnv(c *Config) {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvAsDuration("READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvAsDuration("WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvAsDuration("IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvAsDuration("SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)

	c.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", c.Database.Driver))
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.SQLitePath = getEnv("DB_SQLITE_PATH", c.Database.SQLitePath)
	c.Database.MongoURI = getEnv("MONGO_URI", c.Database.MongoURI)
	c.Database.MongoCollection = getEnv("MONGO_COLLECTION", c.Database.MongoCollection)
	c.Database.MaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnMaxIdleTime = getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", c.Database.ConnMaxIdleTime)
	c.Database.ConnectTimeout = getEnvAsDuration("DB_CONNECT_TIMEOUT", c.Database.ConnectTimeout)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvAsInt("REDIS_POOL_SIZE", c.Redis.PoolSize)
	c.Redis.MinIdleConns = getEnvAsInt("REDIS_MIN_IDLE_CONNS", c.Redis.MinIdleConns)
	c.Redis.MaxRetries = getEnvAsInt("REDIS_MAX_RETRIES", c.Redis.MaxRetries)
	c.Redis.DialTimeout = getEnvAsDuration("REDIS_DIAL_TIMEOUT", c.Redis.DialTimeout)
	c.Redis.ReadTimeout = getEnvAsDuration("REDIS_READ_TIMEOUT", c.Redis.ReadTimeout)
	c.Redis.WriteTimeout = getEnvAsDuration("REDIS_WRITE_TIMEOUT", c.Redis.WriteTimeout)

	c.Cache.Enabled = getEnvAsBool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.TaskTTL = getEnvAsDuration("CACHE_TASK_TTL", c.Cache.TaskTTL)
	c.Cache.ListTTL = getEnvAsDuration("CACHE_LIST_TTL", c.Cache.ListTTL)
	c.Cache.LocalTTL = getEnvAsDuration("CACHE_LOCAL_TTL", c.Cache.LocalTTL)
	c.Cache.BreakerMaxFailures = getEnvAsInt("CACHE_BREAKER_MAX_FAILURES", c.Cache.BreakerMaxFailures)
	c.Cache.BreakerTimeout = getEnvAsDuration("CACHE_BREAKER_TIMEOUT", c.Cache.BreakerTimeout)

	c.Worker.Enabled = getEnvAsBool("WORKER_ENABLED", c.Worker.Enabled)
	c.Worker.Concurrency = getEnvAsInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.PollInterval = getEnvAsDuration("WORKER_POLL_INTERVAL", c.Worker.PollInterval)
	c.Worker.Queue = getEnv("WORKER_QUEUE", c.Worker.Queue)
	c.Worker.MaxTries = getEnvAsInt("WORKER_MAX_TRIES", c.Worker.MaxTries)
	c.Worker.RetryBaseDelay = getEnvAsDuration("WORKER_RETRY_BASE_DELAY", c.Worker.RetryBaseDelay)

	c.RateLimit.Enabled = getEnvAsBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerMin = getEnvAsInt("RATE_LIMIT_RPM", c.RateLimit.RequestsPerMin)
	c.RateLimit.BurstSize = getEnvAsInt("RATE_LIMIT_BURST", c.RateLimit.BurstSize)
	c.RateLimit.CleanupInterval = getEnvAsDuration("RATE_LIMIT_CLEANUP", c.RateLimit.CleanupInterval)

	c.CORS.AllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", c.CORS.AllowedOrigins)

	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Log.Format))
	if c.IsProduction() && os.Getenv("LOG_FORMAT") == "" && c.Log.Format == "text" {
		c.Log.Format = "json"
	}

	c.List.DefaultLimit = getEnvAsInt("LIST_DEFAULT_LIMIT", c.List.DefaultLimit)
	c.List.MaxLimit = getEnvAsInt("LIST_MAX_LIMIT", c.List.MaxLimit)

	c.Client.BaseURL = getEnv("TODO_API_URL", c.Client.BaseURL)
	c.Client.PageSize = getEnvAsInt("TODO_PAGE_SIZE", c.Client.PageSize)
	c.Client.RequestTimeout = getEnvAsDuration("TODO_REQUEST_TIMEOUT", c.Client.RequestTimeout)
	c.Client.LogFile = getEnv("TODO_LOG_FILE", c.Client.LogFile)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.List.DefaultLimit <= 0 || c.List.MaxLimit < c.List.DefaultLimit {
		return fmt.Errorf("list limits are inconsistent: default %d, max %d", c.List.DefaultLimit, c.List.MaxLimit)
	}

	if c.IsProduction() {
		if c.Database.Driver == DriverPostgres && c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("wildcard CORS origin is not allowed in production")
			}
		}
	}

	return nil
}

// GetDatabaseDSN returns the connection string for the configured SQL driver.
func (c *Config) GetDatabaseDSN() string {
	if c.Database.Driver == DriverSQLite {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
