package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tarancss/hd"
)

// MainnetChainID is the network an HDProvider starts on.
const MainnetChainID = "0x1"

// HDProvider is a headless wallet provider backed by a hierarchical deterministic wallet. It exposes the first
// accounts of one HD wallet and keeps the set of known networks and the active one, the way browser wallets do.
type HDProvider struct {
	hd       *hd.HdWallet
	wallet   uint32
	accounts uint32

	l      sync.Mutex
	chain  string
	chains map[string]AddChainParams
}

// NewHDProvider returns a provider exposing accounts addresses of wallet number wallet derived from seed.
func NewHDProvider(seed []byte, wallet, accounts uint32) (*HDProvider, error) {
	w, err := hd.Init(seed)
	if err != nil {
		return nil, fmt.Errorf("wallet: cannot init HD wallet: %w", err)
	}

	return &HDProvider{
		hd:       w,
		wallet:   wallet,
		accounts: accounts,
		chain:    MainnetChainID,
		chains:   map[string]AddChainParams{MainnetChainID: {ChainID: MainnetChainID, ChainName: "Ethereum Mainnet"}},
	}, nil
}

// Signer returns the signer of account number id.
func (p *HDProvider) Signer(id uint32) (*KeySigner, error) {
	if id >= p.accounts {
		return nil, &ProviderError{Code: CodeInvalidParams, Message: fmt.Sprintf("account %d not available", id)}
	}

	_, key, _, err := p.hd.Address(p.wallet, hd.External, id)
	if err != nil {
		return nil, fmt.Errorf("wallet: cannot derive account %d: %w", id, err)
	}

	return NewKeySigner(key)
}

// Accounts returns the addresses exposed by the provider.
func (p *HDProvider) Accounts() ([]string, error) {
	as := make([]string, 0, p.accounts)

	for id := uint32(0); id < p.accounts; id++ {
		addr, _, _, err := p.hd.Address(p.wallet, hd.External, id)
		if err != nil {
			return nil, fmt.Errorf("wallet: cannot derive account %d: %w", id, err)
		}

		as = append(as, common.BytesToAddress(addr).Hex())
	}

	return as, nil
}

// ChainID returns the active network chain id.
func (p *HDProvider) ChainID() string {
	p.l.Lock()
	defer p.l.Unlock()

	return p.chain
}

// Request implements Provider.
func (p *HDProvider) Request(_ context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	switch method {
	case "eth_requestAccounts", "eth_accounts":
		as, err := p.Accounts()
		if err != nil {
			return nil, err
		}

		return json.Marshal(as)
	case "eth_chainId":
		return json.Marshal(p.ChainID())
	case "wallet_switchEthereumChain":
		var sp SwitchChainParams
		if err := decodeParam(params, &sp); err != nil {
			return nil, err
		}

		id := normalizeChainID(sp.ChainID)

		p.l.Lock()
		defer p.l.Unlock()

		if _, ok := p.chains[id]; !ok {
			return nil, &ProviderError{Code: CodeUnknownChain, Message: "unrecognized chain id " + sp.ChainID}
		}

		p.chain = id

		return json.RawMessage("null"), nil
	case "wallet_addEthereumChain":
		var ap AddChainParams
		if err := decodeParam(params, &ap); err != nil {
			return nil, err
		}

		id := normalizeChainID(ap.ChainID)

		p.l.Lock()
		defer p.l.Unlock()

		p.chains[id] = ap
		p.chain = id

		return json.RawMessage("null"), nil
	}

	return nil, &ProviderError{Code: CodeUnsupported, Message: "unsupported method " + method}
}

// decodeParam decodes the first parameter into v whatever its Go type is.
func decodeParam(params []interface{}, v interface{}) error {
	if len(params) == 0 {
		return &ProviderError{Code: CodeInvalidParams, Message: "missing parameters"}
	}

	b, err := json.Marshal(params[0])
	if err == nil {
		err = json.Unmarshal(b, v)
	}

	if err != nil {
		return &ProviderError{Code: CodeInvalidParams, Message: err.Error()}
	}

	return nil
}

func normalizeChainID(id string) string {
	n, err := hexutil.DecodeUint64(strings.ToLower(id))
	if err != nil {
		return strings.ToLower(id)
	}

	return hexutil.EncodeUint64(n)
}
