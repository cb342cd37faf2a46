package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tamrstore/storefront/internal/cart"
	"github.com/tamrstore/storefront/internal/catalog"
	"github.com/tamrstore/storefront/internal/config"
	"github.com/tamrstore/storefront/internal/event"
	handler "github.com/tamrstore/storefront/internal/handler/http"
	"github.com/tamrstore/storefront/internal/service"
	"github.com/tamrstore/storefront/pkg/health"
	"github.com/tamrstore/storefront/pkg/httpclient"
	pkgkafka "github.com/tamrstore/storefront/pkg/kafka"
	"github.com/tamrstore/storefront/pkg/middleware"
	"github.com/tamrstore/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	storage        *storage
	producer       *pkgkafka.Producer
	tracerShutdown tracing.ShutdownFunc
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	healthHandler := health.NewHandler()
	if store.check != nil {
		healthHandler.Register(cfg.StorageDriver, store.check)
	}

	// Events are optional; a disabled bus still lets carts work.
	var (
		producer  *pkgkafka.Producer
		publisher service.EventPublisher = event.NoopProducer{}
	)
	if cfg.KafkaEnabled {
		producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, logger)
		publisher = event.NewProducer(producer, logger)
		healthHandler.Register("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Upstream shop API, each behind its own breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	httpCfg.MaxRetries = cfg.HTTPRetries
	baseClient := httpclient.New(httpCfg)

	catalogDoer := httpclient.NewCircuitBreakerClient(baseClient, breakerConfig(cfg, "catalog"), logger).
		WithFallback(service.CircuitOpenFallback)
	orderDoer := httpclient.NewCircuitBreakerClient(baseClient, breakerConfig(cfg, "orders"), logger).
		WithFallback(service.CircuitOpenFallback)

	registry := cart.NewRegistry(store.device, cfg.StorageKey, logger, cart.WithIdleTTL(cfg.CartIdleTTL))
	cartService := service.NewCartService(registry, catalog.NewClient(catalogDoer, cfg.CatalogAPIURL, logger), publisher, logger)
	checkoutService := service.NewCheckoutService(registry, orderDoer, cfg.OrderAPIURL, publisher, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	router := handler.NewRouter(
		handler.NewCartHandler(cartService, checkoutService, logger),
		healthHandler,
		handler.RouterConfig{
			CORS:           cors,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			PprofCIDRs:     cfg.PprofAllowedCIDRs,
		},
		logger,
	)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		storage:        store,
		producer:       producer,
		tracerShutdown: tracerShutdown,
		httpServer:     httpServer,
	}, nil
}

func breakerConfig(cfg *config.Config, name string) httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig(name)
	cb.MaxRequests = cfg.CBMaxRequests
	cb.Interval = cfg.CBInterval
	cb.Timeout = cfg.CBTimeout
	cb.FailureRatio = cfg.CBFailureRatio
	cb.MinRequests = cfg.CBMinRequests
	return cb
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
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
		a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	a.storage.close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
