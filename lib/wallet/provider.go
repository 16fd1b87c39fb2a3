package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider types, as named in the configuration.
const (
	ProviderHD  = "hd"
	ProviderRPC = "rpc"
)

// ErrUnknownProvider is returned by Select for provider types it does not know.
var ErrUnknownProvider = errors.New("wallet: unknown provider type")

// Provider error codes, as wallets report them.
const (
	CodeUserRejected  = 4001
	CodeUnsupported   = 4200
	CodeUnknownChain  = 4902
	CodeInvalidParams = -32602
)

// Provider is the account and network API exposed by a wallet: a single request method taking a method name and
// its parameters and returning the raw JSON result.
type Provider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
}

// ProviderError is an error reported by a wallet provider.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet provider error %d: %s", e.Code, e.Message)
}

// NativeCurrency describes the currency of a chain added to a wallet.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// AddChainParams are the parameters of wallet_addEthereumChain.
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// SwitchChainParams are the parameters of wallet_switchEthereumChain.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// Select returns the provider wallets are connected through: the HD wallet itself for ProviderHD (or no type), or
// the node at url for ProviderRPC.
func Select(ctx context.Context, kind, url string, keys *HDProvider) (Provider, error) {
	switch kind {
	case "", ProviderHD:
		return keys, nil
	case ProviderRPC:
		p, err := DialRPC(ctx, url)
		if err != nil {
			return nil, err
		}

		return p, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
}
