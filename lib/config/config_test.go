// config_test.go tests config files
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileToTest is a relative path to the configuration file to test (ie. relief/cmd/conf.json)
var fileToTest = "../../cmd/conf.json"

// TestConfig extracts config from a file and checks values loaded
func TestConfig(t *testing.T) {
	conf, err := ExtractConfiguration(fileToTest)
	require.NoError(t, err)

	assert.Equal(t, "3030", conf.Port)
	assert.Equal(t, "mongodb", conf.DBType)
	assert.Equal(t, "amqp", conf.MbType)
	assert.Equal(t, "sepolia", conf.Chain.Name)
	assert.Equal(t, uint64(11155111), conf.Chain.ChainID)
	assert.Equal(t, int32(18), conf.Chain.Decimals)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", conf.Chain.Contract)
	assert.Equal(t, uint32(2), conf.Wallet)
	// not in the file
	assert.Equal(t, SeedDefault, conf.Seed)
}

func TestDefaults(t *testing.T) {
	conf, err := ExtractConfiguration("")
	require.NoError(t, err)

	assert.Equal(t, DBTypeDefault, conf.DBType)
	assert.Equal(t, MbTypeDefault, conf.MbType)
	assert.Equal(t, ChainDefault, conf.Chain)
	assert.Equal(t, RateDefault, conf.Rate)
	assert.True(t, conf.SeedCampaigns)
	assert.Equal(t, WalletProviderDefault, conf.WalletProvider)
	assert.Empty(t, conf.WalletNode)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("RELIEF_PORT", "8080")
	t.Setenv("RELIEF_DBTYPE", "postgresql")
	t.Setenv("RELIEF_CHAIN_NODE", "http://localhost:8545")
	t.Setenv("RELIEF_CHAIN_CONFIRMATIONS", "6")
	t.Setenv("RELIEF_WALLETPROVIDER", "rpc")
	t.Setenv("RELIEF_WALLETNODE", "http://localhost:8546")

	conf, err := ExtractConfiguration(fileToTest)
	require.NoError(t, err)

	assert.Equal(t, "8080", conf.Port)
	assert.Equal(t, "postgresql", conf.DBType)
	assert.Equal(t, "http://localhost:8545", conf.Chain.Node)
	assert.Equal(t, 6, conf.Chain.Confirmations)
	assert.Equal(t, "rpc", conf.WalletProvider)
	assert.Equal(t, "http://localhost:8546", conf.WalletNode)
	// file values not overridden are kept
	assert.Equal(t, "sepolia", conf.Chain.Name)
}

func TestMissingFile(t *testing.T) {
	_, err := ExtractConfiguration("does-not-exist.json")
	assert.Error(t, err)
}
