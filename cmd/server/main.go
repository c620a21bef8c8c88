package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prizeboard/internal/api/handlers"
	"prizeboard/internal/config"
	"prizeboard/internal/jobs"
	"prizeboard/internal/logging"
	"prizeboard/internal/repository"
	"prizeboard/internal/scoring"
	"prizeboard/internal/service"
	"prizeboard/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// backend groups the store implementations selected by configuration
type backend struct {
	store    service.Store
	segments scoring.SegmentStore
	profiles scoring.ProfileStore
	close    func() error
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize storage
	be, err := initBackend(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize store", zap.Error(err))
	}

	// Initialize Redis snapshot cache
	var (
		cache     service.SnapshotCache
		redisRepo *repository.RedisRepository
	)
	if cfg.Redis.Enabled {
		redisClient, err := initRedis(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		redisRepo = repository.NewRedisRepository(redisClient, cfg.Redis.SnapshotTTL)
		cache = redisRepo
		logger.Info("Connected to Redis", zap.String("addr", cfg.GetRedisAddr()))
	}

	// Initialize Worker Pool for parallel scoring; zero workers scores inline
	var (
		workerPool *worker.WorkerPool
		pool       scoring.Pool
	)
	if cfg.Scoring.Workers > 0 {
		workerPool = worker.NewWorkerPool(cfg.Scoring.Workers, cfg.Scoring.QueueSize, logger.Named("worker"))
		workerPool.Start()
		pool = workerPool
	}

	clock := clockwork.NewRealClock()
	scorer := scoring.NewScorer(be.segments, be.profiles)
	builder := scoring.NewBuilder(scorer, pool, logger.Named("scoring"))
	competitionService := service.NewCompetitionService(be.store, cache, scorer, builder, clock, logger.Named("service"))

	// Schedule the lifecycle transition check
	var sweeper *jobs.ClosingSweeper
	if !cfg.Lifecycle.Disabled {
		sweeper, err = jobs.NewClosingSweeper(competitionService, clock, jobs.SweeperConfig{
			Interval: cfg.Lifecycle.SweepInterval,
			Timeout:  cfg.Lifecycle.SweepTimeout,
		}, logger.Named("sweeper"))
		if err != nil {
			logger.Fatal("Failed to create closing sweeper", zap.Error(err))
		}
		if err := sweeper.Start(); err != nil {
			logger.Fatal("Failed to start closing sweeper", zap.Error(err))
		}
	}

	competitionHandler := handlers.NewCompetitionHandler(competitionService, logger.Named("http"))

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Prizeboard",
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Routes
	competitionHandler.Register(app.Group("/api/v1"))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Prizeboard competition API",
			"version": "1.0.0",
			"store":   cfg.Store.Driver,
		})
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("Shutting down server")

		// First, stop closing new competitions
		if sweeper != nil {
			if err := sweeper.Stop(); err != nil {
				logger.Error("Closing sweeper shutdown error", zap.Error(err))
			}
		}

		// Second, stop accepting new HTTP requests
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}

		// Third, drain in-flight scoring tasks
		if workerPool != nil {
			if err := workerPool.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
				logger.Error("Worker pool shutdown error", zap.Error(err))
			}
		}

		// Finally, close connections
		if err := be.close(); err != nil {
			logger.Error("Error closing store", zap.Error(err))
		}
		if redisRepo != nil {
			if err := redisRepo.Close(); err != nil {
				logger.Error("Error closing Redis", zap.Error(err))
			}
		}

		logger.Info("Server shutdown complete")
	}()

	// Start server
	port := cfg.Server.Port
	logger.Info("Server starting", zap.Int("port", port), zap.String("store", cfg.Store.Driver))
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// initBackend opens the configured store and runs migrations
func initBackend(cfg *config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		mem := repository.NewMemoryStore()
		logger.Warn("Using in-memory store; data is lost on restart")
		return &backend{store: mem, segments: mem, profiles: mem, close: func() error { return nil }}, nil
	}

	db, err := initPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	logger.Info("Connected to PostgreSQL",
		zap.Int("max_open", cfg.Database.MaxOpen),
		zap.Int("max_idle", cfg.Database.MaxIdle))

	postgresRepo := repository.NewPostgresRepository(db)
	if err := postgresRepo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("Database migrations completed")

	return &backend{
		store:    postgresRepo,
		segments: repository.NewSegmentRepository(db),
		profiles: repository.NewProfileRepository(db),
		close:    postgresRepo.Close,
	}, nil
}

// initPostgres initializes PostgreSQL connection with connection pooling
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Scoring workers each hold a connection while summing segments
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpen)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdle)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// initRedis initializes Redis connection with connection pooling
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "Request failed",
		"message": err.Error(),
	})
}
