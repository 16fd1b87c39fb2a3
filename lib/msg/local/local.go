// Package local implements the message broker interface in process, for tests and for running the portal and the
// watcher in a single process. Messages are queued per topic and network until a consumer takes them and are lost
// on exit.
package local

import (
	"sync"

	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/msg/types"
)

// queue is an unbounded FIFO of donations.
type queue struct {
	items []types.Donation
	cond  *sync.Cond
}

// Local is a msg.MsgBroker kept in memory.
type Local struct {
	l      sync.Mutex
	queues map[string]*queue
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New returns an empty broker.
func New() *Local {
	return &Local{queues: make(map[string]*queue), done: make(chan struct{})}
}

// Setup implements msg.MsgBroker, there is nothing to set up.
func (b *Local) Setup(interface{}) error {
	return nil
}

// Close stops the consumers. Queued messages are dropped.
func (b *Local) Close() error {
	b.l.Lock()
	if b.closed {
		b.l.Unlock()

		return nil
	}

	b.closed = true
	close(b.done)

	for _, q := range b.queues {
		q.cond.Broadcast()
	}
	b.l.Unlock()

	b.wg.Wait()

	return nil
}

// get returns the queue for key. Must be called with the lock held.
func (b *Local) get(key string) *queue {
	q, ok := b.queues[key]
	if !ok {
		q = &queue{cond: sync.NewCond(&b.l)}
		b.queues[key] = q
	}

	return q
}

func (b *Local) push(topic, net string, ds ...types.Donation) error {
	b.l.Lock()
	defer b.l.Unlock()

	if b.closed {
		return msg.ErrClosed
	}

	q := b.get(topic + "." + net)
	q.items = append(q.items, ds...)
	q.cond.Signal()

	return nil
}

// pop blocks until a donation is queued under key or the broker is closed.
func (b *Local) pop(key string) (types.Donation, bool) {
	b.l.Lock()
	defer b.l.Unlock()

	q := b.get(key)
	for len(q.items) == 0 && !b.closed {
		q.cond.Wait()
	}

	if b.closed {
		return types.Donation{}, false
	}

	d := q.items[0]
	q.items = q.items[1:]

	return d, true
}

// Queued returns the number of messages of the topic for net not yet taken by a consumer.
func (b *Local) Queued(topic, net string) int {
	b.l.Lock()
	defer b.l.Unlock()

	return len(b.get(topic + "." + net).items)
}

// SendDonation implements msg.MsgBroker.
func (b *Local) SendDonation(net string, d types.Donation) error {
	return b.push(msg.Submitted, net, d)
}

// SendEvents implements msg.MsgBroker.
func (b *Local) SendEvents(net string, ds []types.Donation) error {
	return b.push(msg.Reconciled, net, ds...)
}

// GetEvents implements msg.MsgBroker.
func (b *Local) GetEvents(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return b.consume(msg.Reconciled, net, mut)
}

// GetDonations implements msg.MsgBroker.
func (b *Local) GetDonations(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	return b.consume(msg.Submitted, net, mut)
}

func (b *Local) consume(topic, net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error) {
	b.l.Lock()
	if b.closed {
		b.l.Unlock()

		return nil, nil, msg.ErrClosed
	}
	b.wg.Add(1)
	b.l.Unlock()

	dons := make(chan types.Donation)
	errs := make(chan error)
	key := topic + "." + net

	go func() {
		defer b.wg.Done()
		defer close(dons)
		defer close(errs)

		for {
			d, ok := b.pop(key)
			if !ok {
				return
			}

			select {
			case dons <- d:
			case <-b.done:
				return
			}

			mut.Lock() // wait for the consumer to finish processing the donation
		}
	}()

	return dons, errs, nil
}
