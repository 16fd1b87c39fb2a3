// Package broker implements the opening of message broker connections.
package broker

import (
	"errors"
	"fmt"

	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/msg/amqp"
	"github.com/tarancss/relief/lib/msg/kafka"
	"github.com/tarancss/relief/lib/msg/local"
	"github.com/tarancss/relief/lib/msg/redis"
	"github.com/tarancss/relief/lib/util"
)

const (
	LOCAL string = "local"
	AMQP  string = "amqp"
	REDIS string = "redis"
	KAFKA string = "kafka"
)

// Types lists the message brokers supported.
var Types = []string{LOCAL, AMQP, REDIS, KAFKA} //nolint:gochecknoglobals // read only

// ErrUnknownType is returned for brokers not in Types.
var ErrUnknownType = errors.New("unknown message broker type")

// New returns a new broker connection of type t. The connection string is not used for local brokers.
func New(t, connection string) (msg.MsgBroker, error) {
	if !util.In(Types, t) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}

	switch t {
	case AMQP:
		return wrap(amqp.New(connection))
	case REDIS:
		return wrap(redis.New(connection))
	case KAFKA:
		return wrap(kafka.New(connection))
	}

	return local.New(), nil
}

// wrap avoids returning a non nil interface holding a nil broker.
func wrap[B msg.MsgBroker](b B, err error) (msg.MsgBroker, error) {
	if err != nil {
		return nil, err
	}

	return b, nil
}
