// Package wallet connects the user's wallet: it asks the wallet provider for an account and makes sure the wallet
// points at the donation network, adding the network to the wallet when the wallet does not know it.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/config"
	"github.com/tarancss/relief/lib/logger"
)

// Errors returned by Connect.
var (
	ErrWalletUnavailable = errors.New("wallet provider is not available, install a wallet to continue")
	ErrNoAccounts        = errors.New("no accounts found, please unlock the wallet")
)

// Adapter connects a wallet Provider to the donation network.
type Adapter struct {
	p   Provider
	net config.BlockConfig
}

// NewAdapter returns an adapter for the provider p, which may be nil when no wallet is present, and the network
// net.
func NewAdapter(p Provider, net config.BlockConfig) *Adapter {
	return &Adapter{p: p, net: net}
}

// IsAvailable reports whether a wallet provider is present.
func (a *Adapter) IsAvailable() bool {
	return a != nil && a.p != nil
}

// ChainID returns the network chain id in hex, as wallets expect it.
func (a *Adapter) ChainID() string {
	return hexutil.EncodeUint64(a.net.ChainID)
}

// AddChainParams returns the description of the donation network given to wallets that do not know it.
func (a *Adapter) AddChainParams() AddChainParams {
	p := AddChainParams{
		ChainID:        a.ChainID(),
		ChainName:      a.net.ChainName,
		NativeCurrency: NativeCurrency{Name: a.net.Currency, Symbol: a.net.Symbol, Decimals: a.net.Decimals},
		RPCURLs:        []string{a.net.Node},
	}
	if a.net.Explorer != "" {
		p.BlockExplorerURLs = []string{a.net.Explorer}
	}

	return p
}

// Connect requests access to the wallet accounts and returns the first one. The wallet is then asked to switch to
// the donation network, adding it first when the wallet reports it as unknown. Network switching is best effort:
// failures are logged and do not fail the connection.
func (a *Adapter) Connect(ctx context.Context) (string, error) {
	if !a.IsAvailable() {
		return "", ErrWalletUnavailable
	}

	raw, err := a.p.Request(ctx, "eth_requestAccounts")
	if err != nil {
		return "", fmt.Errorf("wallet: request accounts: %w", err)
	}

	var accounts []string
	if err = json.Unmarshal(raw, &accounts); err != nil {
		return "", fmt.Errorf("wallet: bad accounts reply: %w", err)
	}

	if len(accounts) == 0 {
		return "", ErrNoAccounts
	}

	a.switchNetwork(ctx)

	return accounts[0], nil
}

func (a *Adapter) switchNetwork(ctx context.Context) {
	_, err := a.p.Request(ctx, "wallet_switchEthereumChain", SwitchChainParams{ChainID: a.ChainID()})
	if err == nil {
		return
	}

	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Code != CodeUnknownChain {
		logger.Warn("wallet: cannot switch network", logger.Net(a.net.Name), zap.Error(err))

		return
	}

	if _, err = a.p.Request(ctx, "wallet_addEthereumChain", a.AddChainParams()); err != nil {
		logger.Warn("wallet: cannot add network", logger.Net(a.net.Name), zap.Error(err))
	}
}

// ShortenAddress returns the first 6 and last 4 characters of addr joined by "...". An empty address gives an
// empty string.
func ShortenAddress(addr string) string {
	if addr == "" {
		return ""
	}

	head, tail := addr, addr
	if len(addr) > 6 { //nolint:gomnd // "0x" plus 4 hex digits
		head = addr[:6]
	}

	if len(addr) > 4 { //nolint:gomnd
		tail = addr[len(addr)-4:]
	}

	return head + "..." + tail
}
