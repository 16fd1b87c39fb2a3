// Package kafka implements the message broker interface on Kafka. Each topic and network is a kafka topic; consumers
// read within a group and commit a message once they are done with it.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/msg/types"
)

const backoff = time.Second

// Kafka holds one writer for all topics and the readers opened by consumers.
type Kafka struct {
	brokers []string
	writer  *kafka.Writer
	ctx     context.Context
	cancel  context.CancelFunc

	l       sync.Mutex
	readers []*kafka.Reader
	wg      sync.WaitGroup
}

// New returns a broker for the comma separated list of kafka brokers in conn, ie localhost:9092.
func New(conn string) (*Kafka, error) {
	brokers := strings.Split(conn, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}

	k := &Kafka{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond, //nolint:gomnd
		},
	}
	k.ctx, k.cancel = context.WithCancel(context.Background())

	// check a broker is reachable
	c, err := kafka.DialContext(k.ctx, "tcp", brokers[0])
	if err != nil {
		k.cancel()

		return nil, err
	}

	_ = c.Close()

	logger.Info("connected to kafka broker", zap.Strings("brokers", brokers))

	return k, nil
}

// Setup creates the topics of the networks given in x, a []string. Topics are otherwise created on first use.
func (k *Kafka) Setup(x interface{}) error {
	nets, ok := x.([]string)
	if !ok || len(nets) == 0 {
		return nil
	}

	c, err := kafka.DialContext(k.ctx, "tcp", k.brokers[0])
	if err != nil {
		return err
	}
	defer c.Close()

	cfgs := make([]kafka.TopicConfig, 0, 2*len(nets)) //nolint:gomnd
	for _, net := range nets {
		cfgs = append(cfgs,
			kafka.TopicConfig{Topic: topic(msg.Submitted, net), NumPartitions: 1, ReplicationFactor: 1},
			kafka.TopicConfig{Topic: topic(msg.Reconciled, net), NumPartitions: 1, ReplicationFactor: 1})
	}

	return c.CreateTopics(cfgs...)
}

// Close stops the consumers and flushes the writer.
func (k *Kafka) Close() error {
	k.cancel()

	k.l.Lock()
	var err error
	for _, r := range k.readers {
		err = errors.Join(err, r.Close())
	}
	k.readers = nil
	k.l.Unlock()

	k.wg.Wait()

	return errors.Join(err, k.writer.Close())
}

func topic(t, net string) string {
	return t + "-" + net
}

func (k *Kafka) publish(t, net string, ds ...types.Donation) error {
	ms := make([]kafka.Message, 0, len(ds))

	for _, d := range ds {
		body, err := json.Marshal(d)
		if err != nil {
			return err
		}

		ms = append(ms, kafka.Message{Topic: topic(t, net), Key: []byte(msg.Key(net, t, d)), Value: body})
	}

	err := k.writer.WriteMessages(k.ctx, ms...)
	if err != nil {
		logger.Error("cannot publish donations", logger.Net(net), zap.String("topic", t), zap.Error(err))
	}

	return err
}

// SendDonation implements msg.MsgBroker.
func (k *Kafka) SendDonation(net string, d types.Donation) error {
	return k.publish(msg.Submitted, net, d)
}

// SendEvents implements msg.MsgBroker.
func (k *Kafka) SendEvents(net string, ds []types.Donation) error {
	if len(ds) == 0 {
		return nil
	}

	return k.publish(msg.Reconciled, net, ds...)
}

// GetEvents implements msg.MsgBroker.
func (k *Kafka) GetEvents(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return k.consume(msg.Reconciled, net, "portal-"+net, mut)
}

// GetDonations implements msg.MsgBroker.
func (k *Kafka) GetDonations(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return k.consume(msg.Submitted, net, "watcher-"+net, mut)
}

func (k *Kafka) consume(t, net, group string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	if k.ctx.Err() != nil {
		return nil, nil, msg.ErrClosed
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.brokers,
		GroupID:     group,
		Topic:       topic(t, net),
		MaxBytes:    10e6, //nolint:gomnd
		StartOffset: kafka.FirstOffset,
	})

	k.l.Lock()
	k.readers = append(k.readers, r)
	k.l.Unlock()

	dons := make(chan types.Donation)
	errs := make(chan error)

	k.wg.Add(1)

	go func() {
		defer k.wg.Done()
		defer close(dons)
		defer close(errs)

		for {
			m, err := r.FetchMessage(k.ctx)
			if err != nil {
				if k.ctx.Err() != nil {
					return
				}

				logger.Warn("cannot fetch message", logger.Net(net), zap.Error(err))
				time.Sleep(backoff)

				continue
			}

			var d types.Donation
			if err = json.Unmarshal(m.Value, &d); err != nil {
				select {
				case errs <- err:
				case <-k.ctx.Done():
					return
				}
			} else {
				select {
				case dons <- d:
				case <-k.ctx.Done():
					return
				}

				mut.Lock() // wait for the consumer to finish processing the donation
			}

			if err = r.CommitMessages(k.ctx, m); err != nil {
				logger.Warn("cannot commit message", logger.Net(net), zap.Error(err))
			}
		}
	}()

	return dons, errs, nil
}
