package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/sendgft/contracts/internal/app"
	"github.com/sendgft/contracts/internal/app/metrics"
	"github.com/sendgft/contracts/internal/app/storage/postgres"
	"github.com/sendgft/contracts/internal/config"
	"github.com/sendgft/contracts/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the config file (defaults to GIFTERD_CONFIG or config/gifterd.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "gifterd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	log := logger.New(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Component: "gifterd",
	})

	stores, db, err := buildStores(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	application, err := app.New(cfg.Engine, stores, nil, nil, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return err
	}
	log.WithField("admin", cfg.Engine.Admin).Info("engine started")

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server")
			}
		}()
		log.WithField("addr", cfg.Metrics.Addr).Info("metrics listening")
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return application.Stop(shutdownCtx)
}

func buildStores(cfg *config.Config) (app.Stores, *sql.DB, error) {
	if cfg.Database.Driver != "postgres" {
		return app.Stores{}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}

	store := postgres.New(db)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	return app.Stores{
		Gifts:   store,
		Cards:   store,
		Ledger:  store,
		Rates:   store,
		Routing: store,
	}, db, nil
}
