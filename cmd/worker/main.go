package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-pricing/db"
	"github.com/noah-isme/toko-pricing/internal/address"
	"github.com/noah-isme/toko-pricing/internal/app"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
)

// The worker runs the periodic address-book repair sweep. Partial writes
// cannot corrupt a book thanks to transactional mutations, but books written
// before the invariant existed still get healed here.
func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := obs.NewLogger("json", "info")
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log := obs.NewLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	domainMetrics := obs.NewDomainMetrics("pricing", nil)
	svc := &address.Service{
		Store:   address.NewPGStore(pool),
		Locks:   lock.Locker{R: rdb, TTL: cfg.LockTTL, Retries: cfg.LockRetries, Backoff: cfg.LockBackoff},
		Log:     log,
		Metrics: domainMetrics,
	}

	redisOpt, err := app.AsynqRedisOpt(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("configure asynq")
	}

	mux := asynq.NewServeMux()
	mux.Handle(address.TaskRepairSweep, address.RepairSweepHandler{
		Svc:   svc,
		Batch: cfg.RepairBatch,
		Log:   log,
	})

	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 2})
	if err := srv.Start(mux); err != nil {
		log.Fatal().Err(err).Msg("start worker")
	}

	scheduler := asynq.NewScheduler(redisOpt, nil)
	spec := fmt.Sprintf("@every %s", cfg.RepairInterval)
	if _, err := scheduler.Register(spec, address.NewRepairSweepTask()); err != nil {
		log.Fatal().Err(err).Msg("register repair sweep")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}

	log.Info().Str("interval", cfg.RepairInterval.String()).Msg("repair worker running")
	<-ctx.Done()

	log.Info().Msg("shutting down")
	scheduler.Shutdown()
	srv.Shutdown()
}
