// Package types common blockchain types.
package types

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Transaction statuses as reported by Receipt.
const (
	TrxPending uint8 = 0
	TrxFailed  uint8 = 1
	TrxSuccess uint8 = 2
)

// Signer holds the key of an account able to authorize transactions. A signer that declines to sign returns an
// error.
type Signer interface {
	Address() common.Address
	SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error)
}

// TxHandle identifies a submitted donation transaction. Value is the native amount donated as a decimal string.
type TxHandle struct {
	Net   string `json:"net"`
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
	Nonce uint64 `json:"nonce"`
}

// Error codes.
var (
	ErrTransactionRejected = errors.New("transaction rejected")
	ErrReadDegraded        = errors.New("chain read failed, reporting zero")
	ErrBadAmount           = errors.New("amount must be a positive number with no more decimals than the currency")
	ErrNoContract          = errors.New("donation contract address is not valid")
)
