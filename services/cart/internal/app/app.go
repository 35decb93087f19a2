package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/giftcart/pkg/auth"
	"github.com/utafrali/giftcart/pkg/database"
	"github.com/utafrali/giftcart/pkg/health"
	pkgkafka "github.com/utafrali/giftcart/pkg/kafka"
	"github.com/utafrali/giftcart/pkg/middleware"
	"github.com/utafrali/giftcart/pkg/tracing"
	"github.com/utafrali/giftcart/services/cart/internal/catalog"
	"github.com/utafrali/giftcart/services/cart/internal/config"
	"github.com/utafrali/giftcart/services/cart/internal/event"
	handler "github.com/utafrali/giftcart/services/cart/internal/handler/http"
	redisrepo "github.com/utafrali/giftcart/services/cart/internal/repository/redis"
	"github.com/utafrali/giftcart/services/cart/internal/service"
	"github.com/utafrali/giftcart/services/cart/migrations"
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	publisher      pkgkafka.Publisher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("addr", cfg.Redis.Addr),
		slog.Int("db", cfg.Redis.DB),
	)

	a := &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		tracerShutdown: tracerShutdown,
	}

	offers, err := a.initCatalog(ctx)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	a.publisher = a.initPublisher(ctx)

	// Build the dependency graph.
	cartTTL := cfg.CartTTLDuration()
	repo := redisrepo.NewCartRepository(rdb, cartTTL)
	eventProducer := event.NewProducer(a.publisher, logger)
	cartService := service.NewCartService(repo, offers, eventProducer, logger, cartTTL)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, time.Hour)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("redis", database.RedisPinger(rdb))
	healthHandler.Register("catalog", offers.Ping)

	// HTTP router.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	a.stopBackground = stopBackground

	router := handler.NewRouter(bgCtx, cartService, healthHandler, jwtManager, handler.RouterConfig{
		RateLimit: middleware.RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst},
		CORS: middleware.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ExposedHeaders: []string{middleware.CorrelationHeader},
		},
		PprofCIDRs: cfg.PprofAllowedCIDRs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

func (a *App) initCatalog(ctx context.Context) (catalog.Repository, error) {
	if a.cfg.CatalogDriver == config.CatalogMemory {
		a.logger.Info("using in-memory gift card catalog")
		return catalog.NewMemoryRepository(catalog.DemoOffers()...), nil
	}

	pool, err := database.NewPostgresPool(ctx, &a.cfg.Postgres, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", a.cfg.Postgres.Host),
		slog.Int("port", a.cfg.Postgres.Port),
		slog.String("database", a.cfg.Postgres.DBName),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "cart"); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		pool.Close()
		return nil, err
	}
	a.logger.Info("database migrations completed")

	if a.cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(a.cfg.SlowQueryThreshold, a.logger)
	}

	a.pool = pool
	return catalog.NewPostgresRepository(pool), nil
}

func (a *App) initPublisher(ctx context.Context) pkgkafka.Publisher {
	if !a.cfg.KafkaEnabled {
		a.logger.Info("kafka disabled, cart events are dropped")
		return pkgkafka.NoopPublisher{}
	}

	if err := pkgkafka.PingBrokers(ctx, a.cfg.KafkaBrokers); err != nil {
		// Events are best effort; the writer keeps retrying in the background.
		a.logger.Warn("kafka brokers unreachable at startup", slog.String("error", err.Error()))
	}

	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(a.cfg.KafkaBrokers), a.logger)
	a.logger.Info("kafka producer initialized", slog.Any("brokers", a.cfg.KafkaBrokers))
	return producer
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	a.stopBackground()

	if err := a.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka producer close: %w", err))
	}

	if a.pool != nil {
		a.pool.Close()
	}

	if err := a.rdb.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis close: %w", err))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
	}

	for _, err := range errs {
		a.logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
