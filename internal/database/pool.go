package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotConnected = errors.New("database not connected")

type PoolConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        logger.LogLevel
}

func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		Driver:          "postgres",
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		LogLevel:        logger.Info,
	}
}

func (c *PoolConfig) validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection limits must not be negative")
	}
	if c.ConnMaxLifetime < 0 || c.ConnMaxIdleTime < 0 {
		return fmt.Errorf("connection lifetimes must not be negative")
	}
	return nil
}

func (c *PoolConfig) dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "postgres", "":
		return postgres.Open(c.DSN), nil
	case "sqlite":
		return sqlite.Open(c.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", c.Driver)
	}
}

// DatabasePool owns the gorm handle for the lifetime of the process. It is
// constructed once at startup and closed on shutdown.
type DatabasePool struct {
	DB     *gorm.DB
	config *PoolConfig
}

func NewDatabasePool(config *PoolConfig) (*DatabasePool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	dialector, err := config.dialector()
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(config.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if config.Driver == "sqlite" {
		// sqlite allows a single writer; one connection also keeps ":memory:"
		// databases from fragmenting per connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabasePool{DB: db, config: config}, nil
}

func (p *DatabasePool) Health() error {
	return p.HealthContext(context.Background())
}

func (p *DatabasePool) HealthContext(ctx context.Context) error {
	if p.DB == nil {
		return ErrNotConnected
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func (p *DatabasePool) Stats() map[string]interface{} {
	if p.DB == nil {
		return map[string]interface{}{"error": ErrNotConnected.Error()}
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	stats := sqlDB.Stats()
	return map[string]interface{}{
		"driver":           p.config.Driver,
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
		"max_open":         stats.MaxOpenConnections,
	}
}

func (p *DatabasePool) Close() error {
	if p.DB == nil {
		return nil
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
