// Package redis implements the message broker interface on Redis streams. Each topic and network is a stream read
// by a consumer group; a message is acknowledged with XACK once the consumer is done with it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/msg/types"
)

const (
	block   = 2 * time.Second
	backoff = time.Second
	payload = "payload"
)

// Redis holds the client and the context cancelled on Close to end all consumers.
type Redis struct {
	client *redis.Client
	name   string // consumer name within a group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New connects to the redis server at uri, ie redis://localhost:6379/0.
func New(uri string) (*Redis, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}

	r := &Redis{client: redis.NewClient(opt), name: "relief"}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	if err = r.client.Ping(r.ctx).Err(); err != nil {
		r.cancel()
		_ = r.client.Close()

		return nil, err
	}

	logger.Info("connected to redis broker", zap.String("addr", opt.Addr))

	return r, nil
}

// Setup sets the consumer name used within the consumer groups when x is a non empty string.
func (r *Redis) Setup(x interface{}) error {
	if s, ok := x.(string); ok && s != "" {
		r.name = s
	}

	return nil
}

// Close stops the consumers and closes the client.
func (r *Redis) Close() error {
	r.cancel()
	r.wg.Wait()

	return r.client.Close()
}

func stream(topic, net string) string {
	return topic + ":" + net
}

func (r *Redis) publish(topic, net string, d types.Donation) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}

	err = r.client.XAdd(r.ctx, &redis.XAddArgs{
		Stream: stream(topic, net),
		Values: map[string]interface{}{payload: body, "key": msg.Key(net, topic, d)},
	}).Err()
	if err != nil {
		logger.Error("cannot publish donation", logger.Net(net), zap.String("topic", topic), zap.Error(err))
	}

	return err
}

// SendDonation implements msg.MsgBroker.
func (r *Redis) SendDonation(net string, d types.Donation) error {
	return r.publish(msg.Submitted, net, d)
}

// SendEvents implements msg.MsgBroker.
func (r *Redis) SendEvents(net string, ds []types.Donation) error {
	for _, d := range ds {
		if err := r.publish(msg.Reconciled, net, d); err != nil {
			return err
		}
	}

	return nil
}

// GetEvents implements msg.MsgBroker.
func (r *Redis) GetEvents(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return r.consume(msg.Reconciled, net, "portal", mut)
}

// GetDonations implements msg.MsgBroker.
func (r *Redis) GetDonations(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return r.consume(msg.Submitted, net, "watcher", mut)
}

func (r *Redis) consume(topic, net, group string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	s := stream(topic, net)

	err := r.client.XGroupCreateMkStream(r.ctx, s, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, nil, err
	}

	dons := make(chan types.Donation)
	errs := make(chan error)

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer close(dons)
		defer close(errs)

		for r.ctx.Err() == nil {
			streams, err := r.client.XReadGroup(r.ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: r.name,
				Streams:  []string{s, ">"},
				Count:    1,
				Block:    block,
			}).Result()

			switch {
			case errors.Is(err, redis.Nil):
				continue
			case err != nil:
				if r.ctx.Err() != nil {
					return
				}

				logger.Warn("cannot read stream", logger.Net(net), zap.String("stream", s), zap.Error(err))
				time.Sleep(backoff)

				continue
			}

			for _, st := range streams {
				for _, m := range st.Messages {
					if !r.deliver(m, dons, errs, mut) {
						return
					}

					if err := r.client.XAck(r.ctx, s, group, m.ID).Err(); err != nil {
						logger.Warn("cannot ack message", logger.Net(net), zap.String("id", m.ID), zap.Error(err))
					}
				}
			}
		}
	}()

	return dons, errs, nil
}

// deliver hands the donation in m to the consumer and waits until it unlocks mut. Malformed messages are reported
// on errs and are acknowledged straight away. It returns false if the broker was closed meanwhile.
func (r *Redis) deliver(m redis.XMessage, dons chan<- types.Donation, errs chan<- error, mut *sync.Mutex) bool {
	var d types.Donation

	val, ok := m.Values[payload].(string)
	if !ok {
		return r.report(errs, errors.New("redis: message without payload "+m.ID))
	}

	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return r.report(errs, err)
	}

	select {
	case dons <- d:
	case <-r.ctx.Done():
		return false
	}

	mut.Lock() // wait for the consumer to finish processing the donation

	return true
}

func (r *Redis) report(errs chan<- error, err error) bool {
	select {
	case errs <- err:
		return true
	case <-r.ctx.Done():
		return false
	}
}
