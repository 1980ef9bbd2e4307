package bus

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Redis is a Redis pub/sub transport. Like core NATS it drops messages for
// subscribers that are not connected.
type Redis struct {
	client *redis.Client
	log    *logrus.Entry
	wg     sync.WaitGroup
}

func DialRedis(ctx context.Context, url string, log *logrus.Entry) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", opt.Addr)
	}
	log.WithField("addr", opt.Addr).Info("connected to redis")
	return &Redis{client: client, log: log}, nil
}

// Client exposes the connection for other redis-backed components.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Publish(ctx context.Context, subject string, data []byte) error {
	return r.client.Publish(ctx, subject, data).Err()
}

func (r *Redis) Subscribe(subject string, h Handler) (Subscription, error) {
	ctx := context.Background()
	ps := r.client.Subscribe(ctx, subject)
	// Wait for the subscription confirmation so no publish is missed after
	// Subscribe returns.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrapf(err, "subscribe %s", subject)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for m := range ps.Channel() {
			h(Message{Subject: m.Channel, Data: []byte(m.Payload)})
		}
	}()
	return redisSubscription{ps: ps}, nil
}

func (r *Redis) Close() error {
	err := r.client.Close()
	r.wg.Wait()
	return err
}

type redisSubscription struct {
	ps *redis.PubSub
}

func (s redisSubscription) Unsubscribe() error { return s.ps.Close() }
