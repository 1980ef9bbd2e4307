package ingest

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
)

// Consumer runs independent workers side by side on one bus connection.
type Consumer struct {
	workers []*Worker
	log     *logrus.Entry
}

func NewConsumer(log *logrus.Entry, workers ...*Worker) *Consumer {
	if log == nil {
		log = logging.Nop()
	}
	return &Consumer{workers: workers, log: log}
}

// Run subscribes every worker, starts the loops and blocks until ctx is
// cancelled. Subscriptions are released before the loops are awaited.
func (c *Consumer) Run(ctx context.Context, s bus.Subscriber) error {
	subs := make([]bus.Subscription, 0, len(c.workers))
	defer func() {
		for _, sub := range subs {
			if err := sub.Unsubscribe(); err != nil {
				c.log.WithError(err).Warn("unsubscribe failed")
			}
		}
	}()

	for _, w := range c.workers {
		sub, err := w.Subscribe(s)
		if err != nil {
			return errors.Wrapf(err, "worker %s", w.Name())
		}
		subs = append(subs, sub)
	}
	for _, w := range c.workers {
		w.Start(ctx)
		c.log.WithFields(logrus.Fields{"worker": w.Name(), "topic": w.Topic()}).Info("subscribed")
	}

	<-ctx.Done()
	for _, w := range c.workers {
		<-w.Done()
	}
	return nil
}
