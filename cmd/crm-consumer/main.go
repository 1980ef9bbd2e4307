package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/app"
	"github.com/KroNicalKODER/mini-crm-backend/internal/config"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logrus.NewEntry(logging.New(cfg.LogLevel, cfg.LogFormat)).WithField("service", "crm-consumer")
	log.WithFields(logrus.Fields{
		"store":   cfg.StoreDriver,
		"bus":     cfg.BusDriver,
		"trigger": cfg.DeliveryTrigger,
		"queue":   cfg.QueueMaxSize,
	}).Info("config loaded")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("crm-consumer stopped")
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

	// Metrics and probes only; the consumer takes no requests.
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	router.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	srv := &http.Server{
		Addr:              ":" + cfg.ConsumerMetricsPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Warn("metrics server")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := app.NewConsumer(cfg, st, b, log).Run(ctx, b); err != nil {
		return errors.Wrap(err, "consumer")
	}
	log.Info("shutdown complete")
	return nil
}
