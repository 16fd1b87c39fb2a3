// Package msg defines the interface for different message brokers.
//
// Messages flow through two topics: the portal publishes submitted donations, consumed by the watcher, and the
// watcher publishes reconciled donations, consumed by the portal. Consumers receive a mutex: a message is only
// acknowledged once the consumer unlocks it, so a message is never lost while it is being dealt with.
package msg

import (
	"errors"
	"sync"

	"github.com/tarancss/relief/lib/msg/types"
)

// Topics.
const (
	Submitted  = "ds" // donations submitted
	Reconciled = "dr" // donations reconciled
)

// ErrClosed is returned when using a broker after Close.
var ErrClosed = errors.New("message broker closed")

// MsgBroker is implemented by every supported broker.
type MsgBroker interface { //nolint:golint,revive
	Setup(interface{}) error
	Close() error

	// methods for the portal
	SendDonation(net string, d types.Donation) error
	GetEvents(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error)

	// methods for the watcher
	GetDonations(net string, mut *sync.Mutex) (<-chan types.Donation, <-chan error, error)
	SendEvents(net string, ds []types.Donation) error
}

// Key returns the routing key of d in net.
func Key(net, topic string, d types.Donation) string {
	return net + "." + topic + "." + d.TxHash
}
