package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flowcore/internal/api"
	"flowcore/internal/config"
	"flowcore/internal/handlers/webhook"
	"flowcore/internal/logging"
	"flowcore/internal/scheduler"
	"flowcore/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("flowcore stopped")
	}
}

func run(cfg *config.Config) error {
	db, err := store.Open(cfg.Database.Path, cfg.Database.BusyTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := store.NewSQLiteRepo(db)
	var dispatcher scheduler.Dispatcher = scheduler.LogDispatcher{}
	if cfg.Dispatcher.WebhookURL != "" {
		dispatcher = webhook.New(cfg.Dispatcher.WebhookURL, cfg.Dispatcher.Timeout)
		log.Info().Str("url", cfg.Dispatcher.WebhookURL).Msg("dispatching workflows to webhook")
	}
	sched := scheduler.NewService(repo, dispatcher, cfg.Scheduler.Interval).WithWorkers(cfg.Scheduler.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if schedules, err := repo.ListSchedules(ctx); err == nil {
		log.Info().Int("schedules", len(schedules)).Str("db", cfg.Database.Path).Msg("store opened")
	}

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     api.NewServerWithDebug(repo, sched, cfg.Server.Debug),
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Start(gCtx)
	})

	g.Go(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
