package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocklink/internal/config"
	"stocklink/internal/infra"
	"stocklink/internal/platform"
	"stocklink/internal/repository"
	"stocklink/internal/router"
	"stocklink/internal/service"
	"stocklink/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger - dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	locker := infra.NewLocker(rdb)
	erpBreaker := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	// Background machinery is wired here (composition root) so the workers
	// share the same infrastructure singletons as the HTTP surface.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)
	worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, map[string]worker.Processor{
		"notification": worker.NewNotificationWorker(mailer, cfg.OpsEmail),
	})

	erpFactory := platform.NewERPFactory(cfg.ContificoBaseURL)
	storeRepo := repository.NewStoreRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	unmappedRepo := repository.NewUnmappedSkuRepository(db)

	drainer := worker.NewDrainer(
		worker.DrainerConfig{
			Interval:   time.Duration(cfg.DrainIntervalSeconds) * time.Second,
			BatchSize:  cfg.DrainBatchSize,
			StaleAfter: time.Duration(cfg.StaleProcessingMinutes) * time.Minute,
		},
		movementRepo, storeRepo, linkRepo, snapshotRepo, unmappedRepo,
		erpFactory, locker, erpBreaker, dispatcher,
	)
	drainer.Start(ctx)

	pullSvc := service.NewPullService(linkRepo, snapshotRepo, unmappedRepo, erpFactory, platform.NewStoreClient, locker, cfg.PullDefaultLimit)
	scheduler := worker.NewPullScheduler(linkRepo, pullSvc, cfg.PullDefaultInterval)
	scheduler.Start(ctx)

	r := router.New(router.Deps{
		Config:     cfg,
		DB:         db,
		Redis:      rdb,
		Locker:     locker,
		ERPBreaker: erpBreaker,
		Notifier:   scheduler,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("stocklink backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	scheduler.Stop()
	cancel()
	log.Info().Msg("server exited")
}
