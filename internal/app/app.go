// Package app assembles the API server from configuration: store, cache,
// job worker, middleware and routes. It owns every long-lived resource and
// exposes them as named shutdown operations.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"todo-tracker/internal/cache"
	"todo-tracker/internal/config"
	"todo-tracker/internal/database"
	"todo-tracker/internal/handlers"
	"todo-tracker/internal/logging"
	"todo-tracker/internal/middleware"
	"todo-tracker/internal/monitoring"
	"todo-tracker/internal/repositories"
	"todo-tracker/internal/services"
	"todo-tracker/internal/worker"

	"github.com/charmbracelet/log"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg      *config.Config
	logger   *log.Logger
	store    repositories.TaskStore
	pool     *database.DatabasePool
	mongo    *repositories.MongoTaskRepository
	redis    *redis.Client
	cache    *cache.MultiLevelCache
	worker   *worker.Worker
	limiter  *middleware.RateLimiter
	registry *monitoring.Registry
	service  services.TaskService
	router   *gin.Engine
	server   *http.Server
	addr     string

	stopBackground context.CancelFunc
}

// New connects to the configured store (and Redis when caching or the
// worker is enabled) and builds the router. Nothing is served until Start.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: monitoring.NewRegistry(),
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	limits := services.ListLimits{Default: cfg.List.DefaultLimit, Max: cfg.List.MaxLimit}
	a.service = services.NewTaskService(a.store, limits)

	if cfg.Cache.Enabled {
		a.openRedis(ctx)
		a.cache = cache.NewMultiLevelCache(
			cache.NewRedisCache(a.redis, cache.DefaultCacheConfig().KeyPrefix),
			cache.MultiLevelConfig{
				LocalTTL: cfg.Cache.LocalTTL,
				Breaker: &cache.CircuitBreakerConfig{
					MaxFailures:      cfg.Cache.BreakerMaxFailures,
					Timeout:          cfg.Cache.BreakerTimeout,
					HalfOpenMaxCalls: 1,
				},
			},
			logger,
		)

		opts := services.CacheOptions{
			TaskTTL: cfg.Cache.TaskTTL,
			ListTTL: cfg.Cache.ListTTL,
			Limits:  limits,
			Logger:  logger,
		}
		if cfg.Worker.Enabled {
			opts.Jobs = worker.NewJobQueue(a.redis, cfg.Worker.Queue, cfg.Worker.MaxTries)
		}
		cached := services.NewCachedTaskService(a.service, a.cache, opts)
		a.service = cached

		a.registry.RegisterHealthCheck("cache", false, a.cache.Health)
		a.registry.RegisterStats("cache", func() interface{} { return a.cache.Stats() })

		if cfg.Worker.Enabled {
			a.worker = worker.NewWorker(worker.WorkerConfig{
				RedisClient:  a.redis,
				Concurrency:  cfg.Worker.Concurrency,
				PollInterval: cfg.Worker.PollInterval,
				Queue:        cfg.Worker.Queue,
				RetryDelay:   cfg.Worker.RetryBaseDelay,
				Logger:       logger,
			})
			a.worker.RegisterHandler(worker.JobTypeWarmTaskList, cached.HandleWarmJob)
		}
	} else if cfg.Worker.Enabled {
		logger.Warn("worker requires the cache to be enabled; not starting it")
	}

	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.BurstSize,
			IdleTTL:           cfg.RateLimit.CleanupInterval,
		})
	}

	a.router = a.buildRouter()
	a.server = &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	cfg := a.cfg
	switch cfg.Database.Driver {
	case config.DriverMongo:
		repo, err := repositories.ConnectMongo(ctx, repositories.MongoConfig{
			URI:            cfg.Database.MongoURI,
			Database:       cfg.Database.Name,
			Collection:     cfg.Database.MongoCollection,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		})
		if err != nil {
			return err
		}
		a.mongo = repo
		a.store = repo

	default:
		pool, err := database.NewDatabasePool(&database.PoolConfig{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.GetDatabaseDSN(),
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			LogLevel:        logging.GormLevel(cfg.Log.Level),
		})
		if err != nil {
			return err
		}
		repo := repositories.NewGormTaskRepository(pool.DB)
		if err := repo.Migrate(); err != nil {
			pool.Close()
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
		a.pool = pool
		a.store = repo
		a.registry.RegisterStats("database", func() interface{} { return pool.Stats() })
	}

	a.registry.RegisterHealthCheck("store", true, a.store.Health)
	a.logger.Info("store ready", "driver", cfg.Database.Driver)
	return nil
}

func (a *App) openRedis(ctx context.Context) {
	rc := a.cfg.Redis
	a.redis = cache.NewRedisClient(&cache.CacheConfig{
		Addr:         a.cfg.GetRedisAddr(),
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
		MaxRetries:   rc.MaxRetries,
		DialTimeout:  rc.DialTimeout,
		ReadTimeout:  rc.ReadTimeout,
		WriteTimeout: rc.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, rc.DialTimeout+time.Second)
	defer cancel()
	if err := a.redis.Ping(pingCtx).Err(); err != nil {
		// Not fatal: the cache serves from L1 until the breaker lets L2 back in.
		a.logger.Warn("redis unreachable at startup", "addr", a.cfg.GetRedisAddr(), "err", err)
	}
}

func (a *App) buildRouter() *gin.Engine {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryWithLog(a.logger),
		middleware.RequestLogger(a.logger),
		a.registry.Middleware(),
		middleware.CORS(a.cfg.CORS.AllowedOrigins),
	)
	if a.limiter != nil {
		router.Use(a.limiter.Middleware())
	}

	a.registry.RegisterRoutes(router)
	handlers.NewTaskHandler(a.service, a.logger).RegisterRoutes(router)

	return router
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Addr is the bound listener address, known after Start.
func (a *App) Addr() string {
	return a.addr
}

// Start launches background goroutines and the HTTP listener. It returns
// once the listener is bound.
func (a *App) Start() error {
	bg, cancel := context.WithCancel(context.Background())
	a.stopBackground = cancel

	if a.limiter != nil && a.cfg.RateLimit.CleanupInterval > 0 {
		go a.limiter.RunCleanup(bg, a.cfg.RateLimit.CleanupInterval)
	}
	if a.worker != nil {
		a.worker.Start()
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
	}

	a.addr = ln.Addr().String()
	a.logger.Info("http server listening", "addr", a.addr)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server stopped", "err", err)
		}
	}()
	return nil
}

// ShutdownOperations is passed to gfshutdown.GracefulShutdown. Everything
// runs in one operation because the store must outlive in-flight requests.
func (a *App) ShutdownOperations() map[string]gfshutdown.Operation {
	return map[string]gfshutdown.Operation{
		"app": a.Shutdown,
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if a.stopBackground != nil {
		a.stopBackground()
	}
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("worker: %w", err))
		}
	}
	if a.cache != nil {
		// Closes the shared redis client too.
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	if err := a.closeStore(ctx); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeStore(ctx context.Context) error {
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	return nil
}
