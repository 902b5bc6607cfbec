// Package app wires the API server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/internal/auth"
	"github.com/xenking/digigoods/internal/domain/checkout"
	"github.com/xenking/digigoods/internal/domain/discount"
	"github.com/xenking/digigoods/internal/domain/pricing"
	"github.com/xenking/digigoods/internal/domain/product"
	"github.com/xenking/digigoods/internal/domain/user"
	"github.com/xenking/digigoods/internal/handler"
	"github.com/xenking/digigoods/internal/storage/redis"
	"github.com/xenking/digigoods/pkg/health"
	"github.com/xenking/digigoods/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	st, err := openStorage(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer st.close()
	if st.pinger != nil {
		healthSvc.AddReadinessCheck(cfg.Storage, 5*time.Second, health.PingCheck(st.pinger))
	}
	repos := st.repos

	var ledgerOpts []discount.LedgerOption
	if cfg.DiscountIndex.Refresh > 0 {
		idx := discount.NewCodeIndex()
		if err := idx.Refresh(ctx, repos.Discounts); err != nil {
			return errors.Wrap(err, "load discount index")
		}
		go refreshIndex(ctx, lg, idx, repos.Discounts, cfg.DiscountIndex.Refresh)
		ledgerOpts = append(ledgerOpts, discount.WithCodeIndex(idx))
	}

	checkoutOpts := []checkout.Option{
		checkout.WithTracerProvider(m.TracerProvider()),
		checkout.WithMeterProvider(m.MeterProvider()),
	}
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()

		dedup := redis.NewDeduplicator(client, cfg.Redis.IdempotencyTTL)
		healthSvc.AddReadinessCheck("redis", 2*time.Second, health.PingCheck(dedup))
		checkoutOpts = append(checkoutOpts, checkout.WithDeduplicator(dedup))
		lg.Info("Idempotency keys enabled", zap.String("redis", cfg.Redis.Addr))
	}

	checkoutSvc, err := checkout.NewService(
		product.NewCatalog(repos.Products),
		discount.NewLedger(repos.Discounts, ledgerOpts...),
		pricing.NewEngine(cfg.MaxDiscount()),
		st.uow,
		checkoutOpts...,
	)
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	tokens := auth.NewTokens([]byte(cfg.JWT.Secret), cfg.JWT.TTL)
	api := handler.New(handler.Deps{
		Products: repos.Products,
		Orders:   repos.Orders,
		Checkout: checkoutSvc,
		Profiles: user.NewProfileService(repos.Users),
		Auth:     auth.NewAuthenticator(repos.Users, tokens),
		Tokens:   tokens,
	}).Routes()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Health endpoints and API routes on one server.
	routeFinder := httpmiddleware.MakeRouteFinder(api)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   httpmiddleware.OutsidePrefix("/api/"),
			}),
			httpmiddleware.Instrument("digigoods-api", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// refreshIndex reloads idx every interval until ctx is done. A failed refresh
// keeps the previous index.
func refreshIndex(ctx context.Context, lg *zap.Logger, idx *discount.CodeIndex, repo discount.Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := idx.Refresh(ctx, repo); err != nil && ctx.Err() == nil {
				lg.Warn("Discount index refresh failed", zap.Error(err))
			}
		}
	}
}
