package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/bot"
	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/coordinator"
	"github.com/example/ride-dispatch/internal/dedupe"
	"github.com/example/ride-dispatch/internal/directory"
	httpapi "github.com/example/ride-dispatch/internal/http"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/ledger"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/messaging"
	"github.com/example/ride-dispatch/internal/offers"
	"github.com/example/ride-dispatch/internal/onboarding"
	"github.com/example/ride-dispatch/internal/payments"
	"github.com/example/ride-dispatch/internal/push"
	"github.com/example/ride-dispatch/internal/storage"
	"github.com/example/ride-dispatch/internal/telegram"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(logger, cfg.PGDSN)
	}

	var mirror storage.Mirror
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresMirror(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres mirror unavailable", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		mirror = pg
	} else {
		mirror = storage.NewMemoryMirror()
	}

	dir := directory.NewMemory()
	if drivers, err := mirror.ListDrivers(); err != nil {
		logger.Error("driver reseed failed", "error", err)
	} else {
		dir.Seed(drivers)
		logger.Info("driver directory seeded", "drivers", len(drivers))
	}

	var guard dedupe.Guard
	if cfg.RedisAddr != "" {
		rg := dedupe.NewRedisGuard(cfg.RedisAddr, cfg.RedisPassword, cfg.DedupeTTL)
		defer rg.Close()
		guard = rg
	} else {
		guard = dedupe.NewMemoryGuard(cfg.DedupeTTL)
	}

	tg := telegram.NewClient(cfg.TelegramToken, cfg.TelegramAPIBase)
	wsReg := messaging.NewWSRegistry()

	var pusher messaging.PushSender
	if cfg.PushEndpoint != "" {
		pusher = push.NewNotifier(cfg.PushEndpoint, cfg.PushKey)
	}
	gw := &messaging.Gateway{TG: tg, WS: wsReg, Push: pusher, Directory: dir, Logger: logger}

	coord := &coordinator.Coordinator{
		Directory: dir,
		Offers:    offers.NewStore(),
		Ledger:    ledger.New(),
		Gateway:   gw,
		Mirror:    mirror,
		Logger:    logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewOfferEventProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		coord.Events = producer
	}
	if cfg.StripeAPIKey != "" {
		coord.Payments = payments.NewStripeFlow(cfg.StripeAPIKey, cfg.StripeCurrency)
	}

	wizard := onboarding.NewWizard(dir, mirror, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poller := &bot.Bot{
		TG:          tg,
		Coord:       coord,
		Wizard:      wizard,
		Ledger:      coord.Ledger,
		Offers:      coord.Offers,
		PollTimeout: cfg.PollTimeoutSec,
		Logger:      logger,
	}
	go poller.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.New(logger, coord, guard, wsReg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("ride-dispatch listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func runMigrations(logger *slog.Logger, dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open error", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_schema.sql"))
	if err != nil {
		logger.Error("migration read error", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec error", "error", err)
		return
	}
	logger.Info("migration applied", "file", "001_create_schema.sql")
}
