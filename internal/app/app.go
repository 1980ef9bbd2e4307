// Package app wires config into the store, bus and worker set shared by the
// binaries.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/config"
	"github.com/KroNicalKODER/mini-crm-backend/internal/delivery"
	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
	"github.com/KroNicalKODER/mini-crm-backend/internal/ingest"
	"github.com/KroNicalKODER/mini-crm-backend/internal/storage/memstore"
	spg "github.com/KroNicalKODER/mini-crm-backend/internal/storage/postgres"
)

// Store is everything the binaries need from the document store.
type Store interface {
	ingest.CreationStore
	ingest.DeliveryStore
	Ready(ctx context.Context) error
	InsertCustomers(ctx context.Context, items []domain.Customer) (int64, error)
	ReplaceCustomers(ctx context.Context, items []domain.Customer) (deleted, inserted int64, err error)
	FindCampaignsByEmail(ctx context.Context, email string) ([]domain.Campaign, error)
	FilterCustomers(ctx context.Context, f domain.AudienceFilter) ([]domain.Customer, error)
}

var (
	_ Store = (*spg.Store)(nil)
	_ Store = (*memstore.Store)(nil)
)

// OpenStore connects the configured store. The returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config, log *logrus.Entry) (Store, func(), error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("store: using in-memory documents, nothing is persisted")
		return memstore.New(), func() {}, nil
	}

	db, err := spg.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "db connect")
	}
	if err := db.RunMigration(ctx, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "migration")
	}
	log.WithField("migration", cfg.MigrationsPath).Info("db: connected, migration applied")
	return spg.NewStore(db), db.Close, nil
}

// OpenBus connects the configured bus driver.
func OpenBus(ctx context.Context, cfg config.Config, log *logrus.Entry) (bus.Bus, error) {
	b, err := bus.Open(ctx, bus.Config{
		Driver:   cfg.BusDriver,
		NATSURL:  cfg.NATSURL,
		RedisURL: cfg.RedisURL,
	}, log.WithField("component", "bus"))
	if err != nil {
		return nil, errors.Wrapf(err, "bus %s", cfg.BusDriver)
	}
	log.WithField("driver", cfg.BusDriver).Info("bus: connected")
	return b, nil
}

// RedisClient reuses the bus connection when the bus is Redis, and dials
// REDIS_URL otherwise. The returned func closes only a client it opened.
func RedisClient(ctx context.Context, cfg config.Config, b bus.Bus) (*redis.Client, func(), error) {
	if rb, ok := b.(*bus.Redis); ok {
		return rb.Client(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "redis ping")
	}
	return client, func() { _ = client.Close() }, nil
}

// NewTrigger picks the Stage 2 trigger for DELIVERY_TRIGGER. An unset mode
// publishes on the bus.
func NewTrigger(cfg config.Config, pub bus.Publisher, log *logrus.Entry) ingest.DeliveryTrigger {
	switch cfg.DeliveryTrigger {
	case ingest.TriggerHTTP:
		return ingest.NewHTTPTrigger(&http.Client{Timeout: 10 * time.Second}, cfg.CampaignEmailURL, log.WithField("component", "trigger"))
	case ingest.TriggerBus:
		return ingest.NewBusTrigger(pub)
	default:
		log.WithField("trigger", cfg.DeliveryTrigger).Warn("unknown delivery trigger, publishing on the bus")
		return ingest.NewBusTrigger(pub)
	}
}

// NewConsumer builds both workers over one store and bus.
func NewConsumer(cfg config.Config, st Store, b bus.Bus, log *logrus.Entry) *ingest.Consumer {
	opts := ingest.Options{
		QueueSize:     cfg.QueueMaxSize,
		HandleTimeout: cfg.HandleTimeout,
		Logger:        log,
	}
	creation := ingest.NewCreationWorker(st, NewTrigger(cfg, b, log), opts)
	deliveryWorker := ingest.NewDeliveryWorker(st, delivery.NewSampler(cfg.DeliverySeed), opts)
	return ingest.NewConsumer(log, creation, deliveryWorker)
}
