// Package db implements the opening and graceful closing of database connections.
package db

import (
	"errors"
	"fmt"

	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/store/memory"
	"github.com/tarancss/relief/lib/store/mongo"
	"github.com/tarancss/relief/lib/store/postgres"
	"github.com/tarancss/relief/lib/util"
)

const (
	MEMORY   string = "memory"
	MONGODB  string = "mongodb"
	POSTGRES string = "postgresql"
)

// Types lists the database products supported.
var Types = []string{MEMORY, MONGODB, POSTGRES} //nolint:gochecknoglobals // read only

// ErrUnknownType is returned for database products not in Types.
var ErrUnknownType = errors.New("unknown database type")

// New returns a new database connection according to the options (database type).
func New(options, connection string) (store.DB, error) {
	if !util.In(Types, options) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, options)
	}

	switch options {
	case MONGODB:
		return wrap(mongo.New(connection))
	case POSTGRES:
		return wrap(postgres.New(connection))
	}

	return memory.New(), nil
}

func wrap[D store.DB](dh D, err error) (store.DB, error) {
	if err != nil {
		return nil, err
	}

	return dh, nil
}

// Close gracefully closes the database connection.
func Close(options string, dh store.DB) error {
	switch options {
	case MONGODB:
		return dh.(*mongo.Mongo).CloseMongo()
	case POSTGRES:
		return dh.(*postgres.Postgres).ClosePostgres()
	case MEMORY:
		return dh.(*memory.Memory).Close()
	}

	return nil
}
