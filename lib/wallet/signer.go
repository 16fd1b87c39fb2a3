package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner signs transactions with a private key held in memory.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewKeySigner returns a signer for the raw secp256k1 private key in key.
func NewKeySigner(key []byte) (*KeySigner, error) {
	k, err := crypto.ToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("wallet: bad private key: %w", err)
	}

	return &KeySigner{key: k, addr: crypto.PubkeyToAddress(k.PublicKey)}, nil
}

// Address returns the account of the signer.
func (s *KeySigner) Address() common.Address {
	return s.addr
}

// SignTx signs tx for the chain chainID.
func (s *KeySigner) SignTx(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	return ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), s.key)
}
