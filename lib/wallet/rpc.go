package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCProvider forwards requests to a node's JSON-RPC endpoint, exposing the accounts the node manages.
type RPCProvider struct {
	c *rpc.Client
}

// DialRPC returns a provider for the node at url.
func DialRPC(ctx context.Context, url string) (*RPCProvider, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("wallet: cannot dial %s: %w", url, err)
	}

	return &RPCProvider{c: c}, nil
}

// Close closes the connection to the node.
func (p *RPCProvider) Close() {
	p.c.Close()
}

// Request implements Provider. Nodes have no access prompt, so eth_requestAccounts is answered with eth_accounts.
func (p *RPCProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if method == "eth_requestAccounts" {
		method = "eth_accounts"
	}

	var res json.RawMessage

	if err := p.c.CallContext(ctx, &res, method, params...); err != nil {
		var re rpc.Error
		if errors.As(err, &re) {
			return nil, &ProviderError{Code: re.ErrorCode(), Message: re.Error()}
		}

		return nil, err
	}

	return res, nil
}
