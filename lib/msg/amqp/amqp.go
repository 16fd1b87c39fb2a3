// Package amqp implements the message broker interface for AMQP compliant brokers (ie RabbitMQ)
package amqp

import (
	"encoding/json"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/msg/types"
)

// Amqp implements a connection to a broker and a channel for reuse.
type Amqp struct {
	conn *amqp.Connection
	l    sync.Mutex // guards ch
	ch   *amqp.Channel
}

// New instantiates a new amqp broker.
func New(uri string) (*Amqp, error) {
	r := &Amqp{}

	var err error
	if r.conn, err = amqp.Dial(uri); err != nil {
		return nil, err
	}

	logger.Info("connected to amqp broker")

	return r, nil
}

// Setup declares the message broker exchanges:
//
// - ds ("donations submitted"): the portal publishes submitted donations to this exchange
//
// - dr ("donations reconciled"): the watcher publishes settled donations to this exchange
func (r *Amqp) Setup(interface{}) error {
	// obtain a one-use channel
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	if err = channel.ExchangeDeclare(msg.Submitted, "topic", true, false, false, false, nil); err != nil {
		return err
	}

	return channel.ExchangeDeclare(msg.Reconciled, "topic", true, false, false, false, nil)
}

// Close terminates gracefully the connection to the AMQP message broker
func (r *Amqp) Close() error {
	r.l.Lock()
	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			logger.Warn("cannot close amqp channel", zap.Error(err))
		}

		r.ch = nil
	}
	r.l.Unlock()

	return r.conn.Close()
}

// channel returns the shared channel, obtaining one if not present.
func (r *Amqp) channel() (*amqp.Channel, error) {
	r.l.Lock()
	defer r.l.Unlock()

	if r.ch == nil {
		var err error
		if r.ch, err = r.conn.Channel(); err != nil {
			return nil, err
		}
	}

	return r.ch, nil
}

func (r *Amqp) publish(exchange, net string, d types.Donation) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}

	ch, err := r.channel()
	if err != nil {
		return err
	}

	m := amqp.Publishing{
		Headers:      amqp.Table{"x-donation-name": net + "." + d.TxHash},
		Body:         body,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
	}

	if err = ch.Publish(exchange, msg.Key(net, exchange, d), false, false, m); err != nil {
		logger.Error("cannot publish donation", logger.Net(net), zap.String("exchange", exchange), zap.Error(err))
	}

	return err
}

// SendDonation publishes a submitted donation to the "ds" exchange.
func (r *Amqp) SendDonation(net string, d types.Donation) error {
	return r.publish(msg.Submitted, net, d)
}

// SendEvents publishes reconciled donations to the "dr" exchange.
func (r *Amqp) SendEvents(net string, ds []types.Donation) error {
	for _, d := range ds {
		if err := r.publish(msg.Reconciled, net, d); err != nil {
			return err
		}
	}

	return nil
}

// GetEvents consumes reconciled donations from the "dr" exchange. The consumed message is only acknowledged when the
// mutex is unlocked.
func (r *Amqp) GetEvents(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return r.consume(msg.Reconciled, net, "portal-"+net, mut)
}

// GetDonations consumes submitted donations from the "ds" exchange for the specified network. The consumed message
// is only acknowledged when the mutex is unlocked.
func (r *Amqp) GetDonations(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return r.consume(msg.Submitted, net, "watcher-"+net, mut)
}

func (r *Amqp) consume(exchange, net, consumer string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	ch, err := r.channel()
	if err != nil {
		return nil, nil, err
	}

	queue := exchange + net
	if _, err = ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, nil, err
	}

	if err = ch.QueueBind(queue, net+".*.*", exchange, false, nil); err != nil {
		return nil, nil, err
	}

	msgs, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}

	dons := make(chan types.Donation)
	errs := make(chan error)

	go func() {
		defer close(dons)
		defer close(errs)

		for m := range msgs {
			var d types.Donation
			if err := json.Unmarshal(m.Body, &d); err != nil {
				errs <- err

				_ = m.Nack(false, false)

				continue
			}

			dons <- d

			mut.Lock() // wait for the consumer to finish processing the donation
			if err := m.Ack(false); err != nil {
				logger.Warn("cannot ack message", logger.Net(net), zap.Error(err))
			}
		}
	}()

	return dons, errs, nil
}
