// Package block defines the interface required for the donation network connection.
package block

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/block/ethereum"
	"github.com/tarancss/relief/lib/block/types"
	"github.com/tarancss/relief/lib/config"
	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/monitor"
)

// Chain is the client to the network donations are sent through.
type Chain interface {
	// member-type methods
	Name() string
	AvgBlock() int // average block mining rate in seconds
	// methods
	Close()
	// SubmitDonation sends amount, in native currency, to the donation contract signed by s. Failures are
	// types.ErrTransactionRejected, or types.ErrBadAmount for amounts that cannot be sent.
	SubmitDonation(ctx context.Context, s types.Signer, amount decimal.Decimal) (types.TxHandle, error)
	// TotalRaised reads the cumulative native amount held by the donation contract.
	TotalRaised(ctx context.Context) (decimal.Decimal, error)
	// Receipt returns types.TrxPending, types.TrxFailed or types.TrxSuccess.
	Receipt(ctx context.Context, hash string) (uint8, error)
}

// Init loads the client for the network read from the config.
func Init(bc config.BlockConfig) (Chain, error) {
	c, err := ethereum.Init(bc)
	if err != nil {
		return nil, err
	}

	logger.Info("blockchain client loaded", logger.Net(bc.Name), zap.String("node", bc.Node))

	return c, nil
}

// TotalRaised returns the contract total, or zero when the read fails. Failures are logged and counted but never
// returned.
func TotalRaised(ctx context.Context, c Chain) decimal.Decimal {
	v, err := c.TotalRaised(ctx)
	if err != nil {
		monitor.DegradedReads.WithLabelValues(c.Name()).Inc()
		logger.Warn("total raised", logger.Net(c.Name()), zap.Error(fmt.Errorf("%w: %w", types.ErrReadDegraded, err)))

		return decimal.Zero
	}

	return v
}
