package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/utafrali/furnishop/internal/auth"
	"github.com/utafrali/furnishop/internal/cart"
	"github.com/utafrali/furnishop/internal/config"
	"github.com/utafrali/furnishop/internal/event"
	handler "github.com/utafrali/furnishop/internal/handler/http"
	"github.com/utafrali/furnishop/internal/repository/postgres"
	redisrepo "github.com/utafrali/furnishop/internal/repository/redis"
	"github.com/utafrali/furnishop/internal/sender"
	"github.com/utafrali/furnishop/internal/sender/logsender"
	"github.com/utafrali/furnishop/internal/sender/telegram"
	"github.com/utafrali/furnishop/internal/service"
	"github.com/utafrali/furnishop/pkg/database"
	"github.com/utafrali/furnishop/pkg/health"
	"github.com/utafrali/furnishop/pkg/httpclient"
	pkgkafka "github.com/utafrali/furnishop/pkg/kafka"
	"github.com/utafrali/furnishop/pkg/middleware"
	"github.com/utafrali/furnishop/pkg/tracing"
)

const (
	serviceName = "furnishop"

	sweepInterval  = time.Minute
	eventDedupeTTL = 7 * 24 * time.Hour
)

// App wires together all dependencies and runs the shop backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	registry       *cart.Registry
	producer       *pkgkafka.Producer
	deadLetter     *kafka.Writer
	consumer       *pkgkafka.Consumer
	limiter        *middleware.RateLimiter
	tracerShutdown tracing.ShutdownFunc
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.Init(initCtx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(initCtx, cfg.Postgres(), logger)
	if err != nil {
		a.abortInit()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(initCtx, pool, postgres.Migrations(), logger); err != nil {
		a.abortInit()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(initCtx, cfg.Redis())
	if err != nil {
		a.abortInit()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	logger.Info("connected to Redis",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)

	// Carts live in memory per session and are written through to Redis.
	cartRepo := redisrepo.NewCartRepository(rdb, cfg.CartTTL())
	a.registry = cart.NewRegistry(cartRepo, logger, cfg.CartIdleTTL)

	orderRepo := postgres.NewOrderRepository(pool)
	productRepo := postgres.NewProductRepository(pool)

	// Chat delivery.
	notifier := sender.NewNotifier(a.chatSender(), sender.MoscowLocation())

	// Order events go through Kafka when brokers are configured; otherwise
	// the order notification is sent in-process.
	var orderEvents service.OrderEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		eventProducer := event.NewProducer(a.producer, logger)
		a.registry.Subscribe(eventProducer.CartListener())
		orderEvents = eventProducer

		a.deadLetter = &kafka.Writer{
			Addr:                   kafka.TCP(cfg.KafkaBrokers...),
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		}
		a.consumer = event.NewOrderConsumer(
			cfg.KafkaBrokers,
			event.NewConsumerHandler(notifier, logger),
			pkgkafka.NewRedisIdempotencyStore(rdb, "furnishop:events:", eventDedupeTTL),
			a.deadLetter,
			logger,
		)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		orderEvents = event.NewInlinePublisher(notifier, logger)
		logger.Warn("KAFKA_BROKERS not set, cart events disabled and order notifications sent in-process")
	}

	// Services.
	routerCfg := handler.RouterConfig{
		Catalog:  service.NewCatalogService(productRepo, logger),
		Cart:     service.NewCartService(a.registry, productRepo, logger),
		Checkout: service.NewCheckoutService(a.registry, orderRepo, redisrepo.NewCheckoutLock(rdb), orderEvents, cfg.SubmitTimeout, logger),
		Contact:  service.NewContactService(notifier, logger),
		Session: handler.SessionConfig{
			MaxAge: cfg.CartTTL(),
			Secure: cfg.CookieSecure,
		},
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			ExposedHeaders:   []string{handler.SessionHeader, middleware.CorrelationHeader},
			AllowCredentials: true,
		},
		PprofCIDRs: cfg.PprofAllowedCIDRs,
		Logger:     logger,
	}

	if cfg.AdminEnabled() {
		jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessExpiry)
		routerCfg.Auth = service.NewAuthService(cfg.AdminEmail, cfg.AdminPasswordHash, jwtManager, int64(cfg.JWTAccessExpiry.Seconds()), logger)
		routerCfg.Orders = service.NewOrderService(orderRepo, logger)
		routerCfg.TokenValidator = jwtManager.Validator()
	} else {
		logger.Warn("ADMIN_EMAIL not set, admin API disabled")
	}

	a.limiter = middleware.NewRateLimiter(cfg.SubmitRateRPS, cfg.SubmitRateBurst, 10*time.Minute, logger)
	routerCfg.SubmitLimiter = a.limiter

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	routerCfg.Health = healthHandler

	// HTTP router.
	router := handler.NewRouter(routerCfg)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// chatSender picks the Telegram bot when it is configured and the log-only
// sender otherwise.
func (a *App) chatSender() sender.Sender {
	tgCfg := telegram.Config{
		BaseURL: a.cfg.TelegramAPIURL,
		Token:   a.cfg.TelegramBotToken,
		ChatID:  a.cfg.TelegramChatID,
	}
	if !tgCfg.Enabled() {
		a.logger.Warn("TELEGRAM_BOT_TOKEN not set, chat messages will only be logged")
		return logsender.New(a.logger)
	}

	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("telegram"),
		a.logger,
	)
	return telegram.New(tgCfg, client)
}

// Run starts the HTTP server, the cart sweeper and the order consumer, then
// blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.registry.Run(ctx, sweepInterval)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(ctx); err != nil {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.limiter.Close()

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.deadLetter != nil {
		if err := a.deadLetter.Close(); err != nil {
			a.logger.Error("kafka dead-letter writer close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.closeStorage()

	a.logger.Info("application shutdown complete")
	return nil
}

// abortInit releases what NewApp acquired before a failed step.
func (a *App) abortInit() {
	a.closeStorage()
	if a.tracerShutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracerShutdown(ctx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}
}

func (a *App) closeStorage() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
