package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/KroNicalKODER/mini-crm-backend/internal/app"
	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/config"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
	transport "github.com/KroNicalKODER/mini-crm-backend/internal/transport/http"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logrus.NewEntry(logging.New(cfg.LogLevel, cfg.LogFormat)).WithField("service", "crm-api")
	log.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.StoreDriver, "bus": cfg.BusDriver}).Info("config loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("crm-api stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Entry) error {
	st, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	b, err := app.OpenBus(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.WithError(err).Warn("bus close")
		}
	}()

	// An in-memory bus only reaches subscribers in this process.
	consumerDone := make(chan struct{})
	if cfg.BusDriver == bus.DriverMemory {
		go func() {
			defer close(consumerDone)
			if err := app.NewConsumer(cfg, st, b, log.WithField("service", "crm-consumer")).Run(ctx, b); err != nil {
				log.WithError(err).Error("embedded consumer")
			}
		}()
		log.Info("ingest: workers embedded (memory bus)")
	} else {
		close(consumerDone)
	}

	var lim *limiter.Limiter
	if cfg.RateLimitStorage == "redis" {
		client, closeClient, err := app.RedisClient(ctx, cfg, b)
		if err != nil {
			return errors.Wrap(err, "rate limit storage")
		}
		defer closeClient()
		lim, err = transport.NewRateLimiter(cfg.RateLimit, cfg.RateLimitStorage, client)
		if err != nil {
			return err
		}
	} else if lim, err = transport.NewRateLimiter(cfg.RateLimit, cfg.RateLimitStorage, nil); err != nil {
		return err
	}

	deps := &transport.ServerDeps{
		Cfg:     cfg,
		Bus:     b,
		Store:   st,
		Limiter: lim,
		Log:     log,
		Now:     func() time.Time { return time.Now().UTC() },
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deps.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return errors.Wrap(err, "http server")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	<-consumerDone
	log.Info("shutdown complete")
	return nil
}
