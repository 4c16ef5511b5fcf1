package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ploop3/Natours/internal/auth"
	"github.com/ploop3/Natours/internal/cache"
	"github.com/ploop3/Natours/internal/checkout"
	"github.com/ploop3/Natours/internal/config"
	"github.com/ploop3/Natours/internal/event"
	handler "github.com/ploop3/Natours/internal/handler/http"
	"github.com/ploop3/Natours/internal/lock"
	"github.com/ploop3/Natours/internal/mail"
	"github.com/ploop3/Natours/internal/ratings"
	esindex "github.com/ploop3/Natours/internal/search/elasticsearch"
	"github.com/ploop3/Natours/internal/service"
	"github.com/ploop3/Natours/pkg/database"
	"github.com/ploop3/Natours/pkg/health"
	"github.com/ploop3/Natours/pkg/httpclient"
	pkgkafka "github.com/ploop3/Natours/pkg/kafka"
	"github.com/ploop3/Natours/pkg/middleware"
	"github.com/ploop3/Natours/pkg/tracing"
)

const serviceName = "natours"

// App wires together all dependencies and runs the API.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	tracingCfg := cfg.Tracing
	tracingCfg.Environment = cfg.Environment
	tracerShutdown, err := tracing.InitTracer(ctx, tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	healthHandler := health.NewHandler()

	st, err := a.openStores(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	if cfg.UsesRedis() {
		client, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr()))
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	// Kafka is optional; events and mail fall back to no-ops and logs.
	var publisher pkgkafka.Publisher
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(cfg.Kafka, logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}
	events := event.NewProducer(publisher, logger)

	var mailer mail.Sender = mail.NewLogSender(logger)
	if cfg.MailDriver == config.MailKafka {
		mailer = mail.NewKafkaSender(publisher, serviceName, logger)
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.RatingsLock == config.LockRedis {
		locker = lock.NewRedis(a.redis, cfg.LockTTL, logger)
	}

	var tourCache service.TourCache
	var engineOpts []ratings.Option
	if cfg.CacheEnabled {
		c := cache.NewTours(a.redis, cfg.CacheTTL)
		tourCache = c
		engineOpts = append(engineOpts, ratings.WithInvalidator(c))
	}

	tourOpts, err := a.searchIndex(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	provider := a.checkoutProvider()

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn.Duration())
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	engine := ratings.New(st.tours, st.reviews, locker, logger, engineOpts...)

	tours := service.NewTourService(st.tours, st.reviews, st.users, tourCache, logger, tourOpts...)
	indexed, err := tours.Reindex(ctx)
	if err != nil {
		return nil, fmt.Errorf("build tour search index: %w", err)
	}
	logger.Info("tour search index loaded", slog.Int("tours", indexed))

	authSvc := service.NewAuthService(st.users, tokens, hasher, mailer, events, logger)
	svc := handler.Services{
		Auth:     authSvc,
		Users:    service.NewUserService(st.users, logger),
		Tours:    tours,
		Reviews:  service.NewReviewService(st.reviews, st.tours, engine, events, logger),
		Bookings: service.NewBookingService(st.bookings, st.tours, st.users, provider, cfg.CheckoutWebhookSecret, events, logger),
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(svc, handler.NewGate(tokens, authSvc.Identity, logger), healthHandler, logger, handler.Options{
		ServiceName: serviceName,
		CORS:        cors,
		RateLimit:   cfg.RateLimit,
		RateWindow:  cfg.RateWindow,
		CookieTTL:   cfg.CookieTTL(),
		ListMaxAge:  cfg.TourListMaxAge,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// searchIndex selects the tour search index. The in-process index needs no
// options.
func (a *App) searchIndex(ctx context.Context, healthHandler *health.Handler) ([]service.TourOption, error) {
	if a.cfg.SearchEngine != config.SearchElasticsearch {
		return nil, nil
	}

	eng, err := esindex.New(ctx, esindex.Config{URL: a.cfg.ElasticsearchURL, Index: a.cfg.ElasticsearchIndex}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to elasticsearch: %w", err)
	}
	a.logger.Info("connected to Elasticsearch",
		slog.String("url", a.cfg.ElasticsearchURL),
		slog.String("index", a.cfg.ElasticsearchIndex),
	)
	healthHandler.RegisterNonCritical("elasticsearch", eng.Ping)
	return []service.TourOption{service.WithSearchIndex(eng)}, nil
}

func (a *App) checkoutProvider() checkout.Provider {
	if a.cfg.CheckoutProvider != config.CheckoutHTTP {
		a.logger.Warn("using mock checkout provider")
		return checkout.NewMockProvider(a.logger)
	}

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = a.cfg.CheckoutTimeout
	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(clientCfg),
		httpclient.DefaultCircuitBreakerConfig("checkout"),
		a.logger,
	)
	return checkout.NewHTTPProvider(cb, a.cfg.CheckoutBaseURL, a.cfg.CheckoutSecretKey, a.cfg.CheckoutCurrency, a.logger)
}

// Handler returns the HTTP handler serving the API.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
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

// Shutdown gracefully stops all components: the HTTP server first so
// in-flight requests drain, then the tracer, then the backing connections.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return errors.Join(errs...)
}
