package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/KroNicalKODER/mini-crm-backend/internal/bus"
	"github.com/KroNicalKODER/mini-crm-backend/internal/domain"
	"github.com/KroNicalKODER/mini-crm-backend/internal/logging"
)

// errIgnored is returned by handlers for kinds that do not belong on their
// topic.
var errIgnored = errors.New("kind not handled on this topic")

// Handler processes one decoded envelope.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

type Options struct {
	QueueSize     int
	HandleTimeout time.Duration
	Logger        *logrus.Entry
}

func (o *Options) setDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// Worker is one subscription loop. Messages are queued by the bus callback
// and handled strictly one at a time.
type Worker struct {
	name    string
	topic   string
	queue   chan bus.Message
	handler Handler
	timeout time.Duration
	log     *logrus.Entry
	m       *metrics
	done    chan struct{}
}

func newWorker(name, topic string, h Handler, opts Options) *Worker {
	opts.setDefaults()
	return &Worker{
		name:    name,
		topic:   topic,
		queue:   make(chan bus.Message, opts.QueueSize),
		handler: h,
		timeout: opts.HandleTimeout,
		log:     opts.Logger.WithFields(logrus.Fields{"worker": name, "topic": topic}),
		m:       getMetrics(),
		done:    make(chan struct{}),
	}
}

func (w *Worker) Name() string  { return w.name }
func (w *Worker) Topic() string { return w.topic }

// Subscribe attaches the worker queue to its topic.
func (w *Worker) Subscribe(s bus.Subscriber) (bus.Subscription, error) {
	return s.Subscribe(w.topic, func(m bus.Message) { w.Enqueue(m) })
}

// Enqueue never blocks the bus; a full queue drops the message.
func (w *Worker) Enqueue(m bus.Message) bool {
	select {
	case w.queue <- m:
		return true
	default:
		w.m.droppedTotal.WithLabelValues(w.name).Inc()
		w.log.WithField("queue", cap(w.queue)).Warn("queue full, message dropped")
		return false
	}
}

// Start runs the loop until ctx is cancelled. Done is closed afterwards.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-w.queue:
				_ = w.Process(ctx, m)
			}
		}
	}()
}

func (w *Worker) Done() <-chan struct{} { return w.done }

// Process handles a single message. Every failure, including a handler
// panic, is logged and returned; the loop keeps running either way.
func (w *Worker) Process(ctx context.Context, m bus.Message) (err error) {
	start := time.Now()
	kind := domain.Kind("undecodable")
	log := w.log

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
		result := domain.Classify(err)
		if errors.Is(err, errIgnored) {
			result = "ignored"
		}
		w.m.messagesTotal.WithLabelValues(w.name, string(kind), result).Inc()
		w.m.handleLatency.WithLabelValues(w.name, string(kind)).Observe(time.Since(start).Seconds())
		w.logOutcome(log, result, err)
	}()

	env, err := domain.DecodeEnvelope(m.Data)
	if err != nil {
		return &domain.ValidationError{Kind: "envelope", Fields: []domain.FieldError{{Field: "envelope", Msg: err.Error()}}}
	}
	if env.Type.Known() {
		kind = env.Type
	}
	log = log.WithFields(logrus.Fields{"envelope_id": env.ID, "kind": env.Type})

	ev, err := env.Event()
	if err != nil {
		return err
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	return w.handler.Handle(ctx, ev)
}

func (w *Worker) logOutcome(log *logrus.Entry, result string, err error) {
	switch result {
	case "ok":
		log.Debug("envelope handled")
	case "ignored", "unknown_kind":
		log.WithError(err).Debug("envelope ignored")
	case "invalid":
		log.WithError(err).Warn("envelope rejected")
	default:
		log.WithError(err).Error("envelope failed")
	}
}
