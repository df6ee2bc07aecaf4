package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-pricing/db"
	"github.com/noah-isme/toko-pricing/internal/address"
	"github.com/noah-isme/toko-pricing/internal/app"
	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/health"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/loyalty"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/quote"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := obs.NewLogger("json", "info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracerConfig{
		ServiceName: "toko-pricing-api",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampling,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init tracer")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	if err := app.RunMigrations(db.Migrations, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	pool, err := app.NewPgxPool(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open postgres")
	}
	defer pool.Close()

	rdb, err := app.NewRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open redis")
	}
	defer rdb.Close()

	validate := app.NewValidator()
	httpMetrics := obs.NewHTTPMetrics("pricing", obs.ParseBucketsCSV(cfg.MetricsBuckets), nil)
	domainMetrics := obs.NewDomainMetrics("pricing", nil)

	rules, err := cfg.CouponRules()
	if err != nil {
		log.Fatal().Err(err).Msg("parse coupon seed")
	}
	engine := quote.Engine{
		Pricing: cfg.MembershipRates(),
		Coupons: coupon.NewStaticRegistry(rules...),
		Loyalty: cfg.LoyaltyRates(),
		Tax:     cfg.TaxPolicy(),
	}

	selections := &loyalty.SelectionStore{R: rdb, Prefix: "pricing", TTL: cfg.SelectionTTL}
	locker := lock.Locker{R: rdb, TTL: cfg.LockTTL, Retries: cfg.LockRetries, Backoff: cfg.LockBackoff}

	addressSvc := &address.Service{
		Store:   address.NewPGStore(pool),
		Locks:   locker,
		Log:     log,
		Metrics: domainMetrics,
	}

	quoteHandler := quote.Handler{
		Engine:       engine,
		Selections:   selections,
		ExchangeRate: cfg.CoinExchangeRate,
		Validate:     validate,
		Metrics:      domainMetrics,
		Log:          log,
	}
	selectionHandler := loyalty.SelectionHandler{Store: selections, Log: log}
	addressHandler := address.Handler{Svc: addressSvc, Validate: validate, Log: log}
	checker := health.Checker{Pool: pool, Redis: rdb}

	rateLimit, err := app.NewRateLimitMiddleware(rdb, cfg.RateLimit)
	if err != nil {
		log.Fatal().Err(err).Msg("init rate limiter")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: log}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", common.CustomerIDHeader},
		MaxAge:         300,
	}))
	r.Use(common.CustomerMiddleware)

	r.Get("/health/live", checker.Live)
	r.Get("/health/ready", checker.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if !cfg.IsProduction() {
		r.Mount("/debug", chimiddleware.Profiler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit)
		r.Post("/quotes", quoteHandler.Compute)
		r.Route("/customers/me", func(r chi.Router) {
			r.Use(common.RequireCustomer)
			r.Route("/redemption-selection", func(r chi.Router) {
				r.Get("/", selectionHandler.Get)
				r.Put("/", selectionHandler.Put)
				r.Delete("/", selectionHandler.Delete)
			})
			r.Route("/addresses", addressHandler.Routes)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("pricing api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
