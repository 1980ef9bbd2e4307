package bus

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// NATS is a core NATS transport: no acknowledgements, no replay.
type NATS struct {
	conn   *nats.Conn
	log    *logrus.Entry
	closed chan struct{}
}

// natsCloseTimeout bounds both the final flush and the drain on Close.
const natsCloseTimeout = 5 * time.Second

func DialNATS(url string, log *logrus.Entry) (*NATS, error) {
	closed := make(chan struct{})
	conn, err := nats.Connect(url,
		nats.Name("mini-crm"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.WithField("url", c.ConnectedUrl()).Info("nats reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
		nats.DrainTimeout(natsCloseTimeout),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats %s", url)
	}
	log.WithField("url", conn.ConnectedUrl()).Info("connected to nats")
	return &NATS{conn: conn, log: log, closed: closed}, nil
}

func (n *NATS) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.conn.Publish(subject, data)
}

func (n *NATS) Subscribe(subject string, h Handler) (Subscription, error) {
	sub, err := n.conn.Subscribe(subject, func(m *nats.Msg) {
		h(Message{Subject: m.Subject, Data: m.Data})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "subscribe %s", subject)
	}
	return sub, nil
}

// Close flushes buffered publishes to the server, drains subscriptions and
// returns once the connection is closed.
func (n *NATS) Close() error {
	if n.conn.IsClosed() {
		return nil
	}
	if err := n.conn.FlushTimeout(natsCloseTimeout); err != nil {
		n.log.WithError(err).Warn("nats flush before close")
	}
	if err := n.conn.Drain(); err != nil {
		return errors.Wrap(err, "drain nats")
	}
	select {
	case <-n.closed:
		return nil
	case <-time.After(natsCloseTimeout + time.Second):
		n.conn.Close()
		return errors.New("nats drain timed out")
	}
}
