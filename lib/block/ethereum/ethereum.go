// Package ethereum implements the Chain interface for Ethereum compatible networks using go-ethereum's client.
package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	goeth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/tarancss/relief/lib/block/types"
	"github.com/tarancss/relief/lib/config"
)

// DonationABI is the interface of the donation contract: a payable donate() and a view returning the cumulative
// amount received, in the smallest currency unit.
const DonationABI = `[
{"inputs":[],"name":"donate","outputs":[],"stateMutability":"payable","type":"function"},
{"inputs":[],"name":"getTotalRaised","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],
 "stateMutability":"view","type":"function"}]`

// Ethereum is a client to one network and its donation contract.
type Ethereum struct {
	name          string
	c             *ethclient.Client
	abi           abi.ABI
	contract      common.Address
	chainID       *big.Int
	decimals      int32
	confirmations int
	avgBlock      int
}

// Init returns a client for the network described in bc.
func Init(bc config.BlockConfig) (*Ethereum, error) {
	if !common.IsHexAddress(bc.Contract) {
		return nil, fmt.Errorf("%w: %q", types.ErrNoContract, bc.Contract)
	}

	parsed, err := abi.JSON(strings.NewReader(DonationABI))
	if err != nil {
		return nil, fmt.Errorf("ethereum: bad contract abi: %w", err)
	}

	c, err := ethclient.Dial(bc.Node)
	if err != nil {
		return nil, fmt.Errorf("ethereum: cannot dial %s: %w", bc.Node, err)
	}

	return &Ethereum{
		name:          bc.Name,
		c:             c,
		abi:           parsed,
		contract:      common.HexToAddress(bc.Contract),
		chainID:       new(big.Int).SetUint64(bc.ChainID),
		decimals:      bc.Decimals,
		confirmations: bc.Confirmations,
		avgBlock:      bc.AvgBlock,
	}, nil
}

// Name returns the network name.
func (e *Ethereum) Name() string { return e.name }

// AvgBlock returns the average block mining rate in seconds.
func (e *Ethereum) AvgBlock() int { return e.avgBlock }

// Close closes the connection to the node.
func (e *Ethereum) Close() { e.c.Close() }

// ToWei converts a native amount to its smallest unit given the currency decimals.
func ToWei(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	w := amount.Shift(decimals)
	if !w.IsInteger() {
		return nil, fmt.Errorf("%w: %s", types.ErrBadAmount, amount)
	}

	return w.BigInt(), nil
}

// FromWei converts an amount in the smallest unit to the native currency.
func FromWei(w *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(w, -decimals)
}

func rejected(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", types.ErrTransactionRejected, step, err)
}

// SubmitDonation sends amount to the donation contract from the signer's account. It returns as soon as the node
// accepted the transaction, it does not wait for it to be mined.
func (e *Ethereum) SubmitDonation(ctx context.Context, s types.Signer, amount decimal.Decimal) (types.TxHandle,
	error) {
	var h types.TxHandle

	if !amount.IsPositive() {
		return h, types.ErrBadAmount
	}

	value, err := ToWei(amount, e.decimals)
	if err != nil {
		return h, err
	}

	data, err := e.abi.Pack("donate")
	if err != nil {
		return h, fmt.Errorf("ethereum: cannot pack donate: %w", err)
	}

	from := s.Address()

	nonce, err := e.c.PendingNonceAt(ctx, from)
	if err != nil {
		return h, rejected("nonce", err)
	}

	price, err := e.c.SuggestGasPrice(ctx)
	if err != nil {
		return h, rejected("gas price", err)
	}

	gas, err := e.c.EstimateGas(ctx, goeth.CallMsg{From: from, To: &e.contract, Value: value, Data: data})
	if err != nil {
		return h, rejected("estimate gas", err)
	}

	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &e.contract,
		Value:    value,
		Data:     data,
	})

	signed, err := s.SignTx(tx, e.chainID)
	if err != nil {
		return h, rejected("sign", err)
	}

	if err = e.c.SendTransaction(ctx, signed); err != nil {
		return h, rejected("send", err)
	}

	return types.TxHandle{
		Net:   e.name,
		Hash:  signed.Hash().Hex(),
		From:  from.Hex(),
		To:    e.contract.Hex(),
		Value: amount.String(),
		Nonce: nonce,
	}, nil
}

// TotalRaised reads the cumulative amount received by the donation contract.
func (e *Ethereum) TotalRaised(ctx context.Context) (decimal.Decimal, error) {
	data, err := e.abi.Pack("getTotalRaised")
	if err != nil {
		return decimal.Zero, err
	}

	out, err := e.c.CallContract(ctx, goeth.CallMsg{To: &e.contract, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ethereum: getTotalRaised: %w", err)
	}

	vals, err := e.abi.Unpack("getTotalRaised", out)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ethereum: getTotalRaised output: %w", err)
	}

	w, ok := vals[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("ethereum: getTotalRaised returned %T", vals[0])
	}

	return FromWei(w, e.decimals), nil
}

// Receipt returns the status of the transaction with the given hash. Transactions not yet mined, or mined in fewer
// than the configured number of confirmations, are pending.
func (e *Ethereum) Receipt(ctx context.Context, hash string) (uint8, error) {
	r, err := e.c.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, goeth.NotFound) {
		return types.TrxPending, nil
	}

	if err != nil {
		return types.TrxPending, fmt.Errorf("ethereum: receipt %s: %w", hash, err)
	}

	if e.confirmations > 1 && r.BlockNumber != nil {
		head, err := e.c.BlockNumber(ctx)
		if err != nil {
			return types.TrxPending, fmt.Errorf("ethereum: block number: %w", err)
		}

		if head+1 < r.BlockNumber.Uint64()+uint64(e.confirmations) {
			return types.TrxPending, nil
		}
	}

	if r.Status == ethtypes.ReceiptStatusSuccessful {
		return types.TrxSuccess, nil
	}

	return types.TrxFailed, nil
}
