// Package blocktest provides an in-memory block.Chain for tests of the services built on it.
package blocktest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/tarancss/relief/lib/block/types"
)

// Contract is the donation contract address reported by the fake chain.
const Contract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

// ErrNode is returned by the fake node when asked to fail.
var ErrNode = errors.New("node unavailable")

// Chain is a fake donation network. Submitted donations are pending until SetReceipt settles them; the contract
// total adds up every donation submitted.
type Chain struct {
	NetName string
	ChainID *big.Int

	l         sync.Mutex
	nonce     map[common.Address]uint64
	receipts  map[string]uint8
	total     decimal.Decimal
	submitted []types.TxHandle
	reject    bool
	down      bool
}

// New returns an empty fake chain named net.
func New(net string) *Chain {
	return &Chain{
		NetName:  net,
		ChainID:  big.NewInt(11155111), //nolint:gomnd
		nonce:    make(map[common.Address]uint64),
		receipts: make(map[string]uint8),
	}
}

// Name implements block.Chain.
func (c *Chain) Name() string { return c.NetName }

// AvgBlock implements block.Chain.
func (c *Chain) AvgBlock() int { return 1 }

// Close implements block.Chain.
func (c *Chain) Close() {}

// Reject makes the node reject every donation submitted from now on.
func (c *Chain) Reject(b bool) {
	c.l.Lock()
	c.reject = b
	c.l.Unlock()
}

// Down makes every read fail.
func (c *Chain) Down(b bool) {
	c.l.Lock()
	c.down = b
	c.l.Unlock()
}

// SubmitDonation implements block.Chain. The transaction is signed by s so its hash is the one a node would return.
func (c *Chain) SubmitDonation(_ context.Context, s types.Signer, amount decimal.Decimal) (types.TxHandle, error) {
	if !amount.IsPositive() {
		return types.TxHandle{}, types.ErrBadAmount
	}

	c.l.Lock()
	defer c.l.Unlock()

	if c.reject {
		return types.TxHandle{}, fmt.Errorf("%w: insufficient funds for gas * price + value", types.ErrTransactionRejected)
	}

	from := s.Address()
	to := common.HexToAddress(Contract)
	wei := amount.Shift(18).BigInt() //nolint:gomnd

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: c.nonce[from], GasPrice: big.NewInt(1), Gas: 21000, To: &to,
		Value: wei})

	signed, err := s.SignTx(tx, c.ChainID)
	if err != nil {
		return types.TxHandle{}, fmt.Errorf("%w: sign: %w", types.ErrTransactionRejected, err)
	}

	h := types.TxHandle{
		Net:   c.NetName,
		Hash:  signed.Hash().Hex(),
		From:  from.Hex(),
		To:    to.Hex(),
		Value: amount.String(),
		Nonce: c.nonce[from],
	}

	c.nonce[from]++
	c.receipts[h.Hash] = types.TrxPending
	c.total = c.total.Add(amount)
	c.submitted = append(c.submitted, h)

	return h, nil
}

// TotalRaised implements block.Chain.
func (c *Chain) TotalRaised(context.Context) (decimal.Decimal, error) {
	c.l.Lock()
	defer c.l.Unlock()

	if c.down {
		return decimal.Zero, ErrNode
	}

	return c.total, nil
}

// Receipt implements block.Chain. Unknown hashes are pending.
func (c *Chain) Receipt(_ context.Context, hash string) (uint8, error) {
	c.l.Lock()
	defer c.l.Unlock()

	if c.down {
		return types.TrxPending, ErrNode
	}

	return c.receipts[hash], nil
}

// SetReceipt settles the transaction hash with status.
func (c *Chain) SetReceipt(hash string, status uint8) {
	c.l.Lock()
	c.receipts[hash] = status
	c.l.Unlock()
}

// Submitted returns the donations submitted so far.
func (c *Chain) Submitted() []types.TxHandle {
	c.l.Lock()
	defer c.l.Unlock()

	return append([]types.TxHandle(nil), c.submitted...)
}
