package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/hype-store/internal/domain/order"
	"github.com/xenking/hype-store/internal/handler"
	"github.com/xenking/hype-store/internal/storage/postgres"
	"github.com/xenking/hype-store/pkg/health"
	"github.com/xenking/hype-store/pkg/httpmiddleware"
)

const serviceName = "store-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + schema.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	probe := health.New()
	probe.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	probe.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	h, err := newHandler(lg, m.TracerProvider(), m.MeterProvider(), cfg, pool, probe)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}
	probe.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: fail readiness, let load balancers notice, drain.
		<-gctx.Done()
		probe.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	return g.Wait()
}

// newHandler wires the order service behind the HTTP middleware stack.
func newHandler(
	lg *zap.Logger,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	cfg *Config,
	pool *pgxpool.Pool,
	probe *health.Health,
) (http.Handler, error) {
	svc, err := order.NewService(postgres.NewOrderRepository(pool), tp, mp)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.Origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", httpmiddleware.RequestIDHeader},
		ExposedHeaders:   []string{httpmiddleware.RequestIDHeader},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           86400,
	}))
	r.Get("/livez", probe.LiveEndpoint)
	r.Get("/readyz", probe.ReadyEndpoint)
	handler.NewHandler(svc).Register(r)

	return httpmiddleware.Wrap(r,
		httpmiddleware.Routing(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.Instrument(serviceName, tp, mp),
		httpmiddleware.RequestID(),
		httpmiddleware.LogRequests(),
	), nil
}
