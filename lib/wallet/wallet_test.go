package wallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarancss/relief/lib/config"
)

const seed = "642ce4e20f09c9f4d285c2b336063eaafbe4cb06dece8134f3a64bdd8f8c0c24df73e1a2e7056359b6db61e179ff45e5ada51d14f07b30becb6d92b961d35df4"

// hdAccount is the external address 1 of HD wallet 2 for seed.
const hdAccount = "0xf4cefc8d1afaa51d5a5e7f57d214b60429ca4378"

func newHD(t *testing.T) *HDProvider {
	t.Helper()

	s, err := hex.DecodeString(seed)
	require.NoError(t, err)

	p, err := NewHDProvider(s, 2, 3)
	require.NoError(t, err)

	return p
}

// call is a request received by fakeProvider.
type call struct {
	method string
	params []interface{}
}

// fakeProvider replies with canned results or errors per method.
type fakeProvider struct {
	calls   []call
	results map[string]string
	errs    map[string]error
}

func (f *fakeProvider) Request(_ context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	f.calls = append(f.calls, call{method, params})
	if err, ok := f.errs[method]; ok {
		return nil, err
	}

	if r, ok := f.results[method]; ok {
		return json.RawMessage(r), nil
	}

	return json.RawMessage("null"), nil
}

func (f *fakeProvider) methods() []string {
	ms := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		ms = append(ms, c.method)
	}

	return ms
}

func TestShortenAddress(t *testing.T) {
	cases := []struct{ in, exp string }{
		{"0x1234567890abcdef1234", "0x1234...1234"},
		{"0xf4cefc8d1afaa51d5a5e7f57d214b60429ca4378", "0xf4ce...4378"},
		{"", ""},
		{"0x12", "0x12...0x12"},
	}
	for _, c := range cases {
		assert.Equal(t, c.exp, ShortenAddress(c.in), c.in)
	}
}

func TestIsAvailable(t *testing.T) {
	assert.False(t, NewAdapter(nil, config.ChainDefault).IsAvailable())
	assert.True(t, NewAdapter(&fakeProvider{}, config.ChainDefault).IsAvailable())

	_, err := NewAdapter(nil, config.ChainDefault).Connect(context.Background())
	assert.True(t, errors.Is(err, ErrWalletUnavailable))
}

func TestConnectNoAccounts(t *testing.T) {
	f := &fakeProvider{results: map[string]string{"eth_requestAccounts": "[]"}}

	_, err := NewAdapter(f, config.ChainDefault).Connect(context.Background())
	assert.True(t, errors.Is(err, ErrNoAccounts))
	assert.Equal(t, []string{"eth_requestAccounts"}, f.methods())
}

func TestConnectRejected(t *testing.T) {
	rej := &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
	f := &fakeProvider{errs: map[string]error{"eth_requestAccounts": rej}}

	_, err := NewAdapter(f, config.ChainDefault).Connect(context.Background())

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeUserRejected, pe.Code)
}

func TestConnectAddsUnknownChain(t *testing.T) {
	f := &fakeProvider{
		results: map[string]string{"eth_requestAccounts": `["0xabc0000000000000000000000000000000000def"]`},
		errs:    map[string]error{"wallet_switchEthereumChain": &ProviderError{Code: CodeUnknownChain}},
	}

	acc, err := NewAdapter(f, config.ChainDefault).Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xabc0000000000000000000000000000000000def", acc)
	assert.Equal(t, []string{"eth_requestAccounts", "wallet_switchEthereumChain", "wallet_addEthereumChain"},
		f.methods())

	add, ok := f.calls[2].params[0].(AddChainParams)
	require.True(t, ok)
	assert.Equal(t, "0xaa36a7", add.ChainID)
	assert.Equal(t, "Sepolia Testnet", add.ChainName)
	assert.Equal(t, NativeCurrency{Name: "SepoliaETH", Symbol: "ETH", Decimals: 18}, add.NativeCurrency)
	assert.Equal(t, []string{"https://ethereum-sepolia-rpc.publicnode.com"}, add.RPCURLs)
	assert.Equal(t, []string{"https://sepolia.etherscan.io"}, add.BlockExplorerURLs)
}

func TestConnectSwitchFailureIgnored(t *testing.T) {
	f := &fakeProvider{
		results: map[string]string{"eth_requestAccounts": `["0x1"]`},
		errs: map[string]error{
			"wallet_switchEthereumChain": &ProviderError{Code: CodeUnknownChain},
			"wallet_addEthereumChain":    &ProviderError{Code: CodeUserRejected},
		},
	}

	acc, err := NewAdapter(f, config.ChainDefault).Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x1", acc)

	f = &fakeProvider{
		results: map[string]string{"eth_requestAccounts": `["0x1"]`},
		errs:    map[string]error{"wallet_switchEthereumChain": errors.New("boom")},
	}

	_, err = NewAdapter(f, config.ChainDefault).Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"eth_requestAccounts", "wallet_switchEthereumChain"}, f.methods(), "no add")
}

func TestHDProvider(t *testing.T) {
	p := newHD(t)
	ctx := context.Background()

	as, err := p.Accounts()
	require.NoError(t, err)
	require.Len(t, as, 3)
	assert.Equal(t, hdAccount, strings.ToLower(as[1]))

	s, err := p.Signer(1)
	require.NoError(t, err)
	assert.Equal(t, hdAccount, strings.ToLower(s.Address().Hex()))

	_, err = p.Signer(3)
	assert.Error(t, err)

	_, err = p.Request(ctx, "eth_sign")

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeUnsupported, pe.Code)

	// first connection adds the network, the second one only switches
	a := NewAdapter(p, config.ChainDefault)

	acc, err := a.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, as[0], acc)
	assert.Equal(t, "0xaa36a7", p.ChainID())

	_, err = p.Request(ctx, "wallet_switchEthereumChain", SwitchChainParams{ChainID: MainnetChainID})
	require.NoError(t, err)
	assert.Equal(t, MainnetChainID, p.ChainID())

	_, err = a.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0xaa36a7", p.ChainID())

	raw, err := p.Request(ctx, "eth_chainId")
	require.NoError(t, err)
	assert.JSONEq(t, `"0xaa36a7"`, string(raw))
}

func TestRPCProvider(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		res := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}

		switch req.Method {
		case "eth_accounts":
			res["result"] = []string{hdAccount}
		default:
			res["error"] = map[string]interface{}{"code": CodeUnknownChain, "message": "unrecognized chain"}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	}))
	defer node.Close()

	p, err := DialRPC(context.Background(), node.URL)
	require.NoError(t, err)
	defer p.Close()

	acc, err := NewAdapter(p, config.ChainDefault).Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hdAccount, acc)

	_, err = p.Request(context.Background(), "wallet_switchEthereumChain", SwitchChainParams{ChainID: "0x5"})

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeUnknownChain, pe.Code)
}

func TestSelect(t *testing.T) {
	keys := newHD(t)
	ctx := context.Background()

	for _, kind := range []string{"", ProviderHD} {
		p, err := Select(ctx, kind, "", keys)
		require.NoError(t, err)
		assert.Equal(t, keys, p, kind)
	}

	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID,
			"result": []string{hdAccount}})
	}))
	defer node.Close()

	p, err := Select(ctx, ProviderRPC, node.URL, keys)
	require.NoError(t, err)

	rp, ok := p.(*RPCProvider)
	require.True(t, ok)
	defer rp.Close()

	acc, err := NewAdapter(p, config.ChainDefault).Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, hdAccount, acc)

	_, err = Select(ctx, "ledger", "", keys)
	assert.True(t, errors.Is(err, ErrUnknownProvider))

	_, err = Select(ctx, ProviderRPC, "ftp://nowhere", keys)
	assert.Error(t, err)
}
