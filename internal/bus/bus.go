// Package bus is the at-most-once publish/subscribe transport between the
// request API and the ingestion workers.
package bus

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
)

// Drivers.
const (
	DriverNATS   = "nats"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Message is one delivery on a subject. Every driver hands the handler its
// own copy of Data, so it may be retained.
type Message struct {
	Subject string
	Data    []byte
}

// Handler is called once per delivered message. It must not block for long:
// slow handlers stall the driver's delivery goroutine.
type Handler func(Message)

type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

type Subscriber interface {
	Subscribe(subject string, h Handler) (Subscription, error)
}

type Subscription interface {
	Unsubscribe() error
}

// Bus is a connected transport. Close releases the connection.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

// PublishEnvelope encodes env and publishes it on the topic for its kind.
// Failures are returned as *domain.TransportError.
func PublishEnvelope(ctx context.Context, p Publisher, env domain.Envelope) error {
	b, err := env.Encode()
	if err != nil {
		return &domain.TransportError{Op: "encode envelope", Err: err}
	}
	if err := p.Publish(ctx, env.Type.Topic(), b); err != nil {
		return &domain.TransportError{Op: "publish " + env.Type.Topic(), Err: err}
	}
	return nil
}

// Config selects and addresses a driver.
type Config struct {
	Driver   string
	NATSURL  string
	RedisURL string
}

// Open connects the configured driver.
func Open(ctx context.Context, cfg Config, log *logrus.Entry) (Bus, error) {
	switch cfg.Driver {
	case DriverNATS, "":
		return DialNATS(cfg.NATSURL, log)
	case DriverRedis:
		return DialRedis(ctx, cfg.RedisURL, log)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("unknown bus driver %q", cfg.Driver)
	}
}
