// Package config reads the relief service configuration. Built-in defaults are overridden first by:
//
// - a JSON config file (see cmd/conf.json for a sample) and then by
//
// - OS ENV variables prefixed with RELIEF_ (ie. RELIEF_DBTYPE, RELIEF_DBCONN, ...). Nested keys are joined with an
// underscore, so the chain node url is read from RELIEF_CHAIN_NODE.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Default configuration variables
//
//nolint:gochecknoglobals // defaults are exported so binaries and tests can refer to them
var (
	EnvDefault       = "development"
	DBTypeDefault    = "memory"
	DBConnDefault    = ""
	RestfulEPDefault = ""
	PortDefault      = "3030"
	MbTypeDefault    = "local"
	MbConnDefault    = ""
	ChainDefault     = BlockConfig{
		Name:          "sepolia",
		Node:          "https://ethereum-sepolia-rpc.publicnode.com",
		ChainID:       11155111, //nolint:gomnd // 0xaa36a7
		ChainName:     "Sepolia Testnet",
		Currency:      "SepoliaETH",
		Symbol:        "ETH",
		Decimals:      18, //nolint:gomnd // wei
		Explorer:      "https://sepolia.etherscan.io",
		Contract:      "",
		Confirmations: 2,  //nolint:gomnd // blocks
		AvgBlock:      12, //nolint:gomnd // seconds
	}
	SeedDefault            = "642ce4e20f09c9f4d285c2b336063eaafbe4cb06dece8134f3a64bdd8f8c0c24df73e1a2e7056359b6db61e179ff45e5ada51d14f07b30becb6d92b961d35df4"
	WalletDefault   uint32 = 0
	AccountsDefault uint32 = 4
	RateDefault            = "250000"

	WalletProviderDefault = "hd"
)

// BlockConfig defines the network the services donate through. Node is the JSON-RPC url used for reads and for
// submitting signed transactions; Contract is the donation contract address.
type BlockConfig struct {
	Name          string `mapstructure:"name" json:"name"`
	Node          string `mapstructure:"node" json:"node"`
	ChainID       uint64 `mapstructure:"chainid" json:"chainId"`
	ChainName     string `mapstructure:"chainname" json:"chainName"`
	Currency      string `mapstructure:"currency" json:"currency"`
	Symbol        string `mapstructure:"symbol" json:"symbol"`
	Decimals      int32  `mapstructure:"decimals" json:"decimals"`
	Explorer      string `mapstructure:"explorer" json:"explorer"`
	Contract      string `mapstructure:"contract" json:"contract"`
	Confirmations int    `mapstructure:"confirmations" json:"confirmations"`
	AvgBlock      int    `mapstructure:"avgblock" json:"avgBlock"`
}

// ServiceConfig contains the fields required by the portal, watcher and reliefctl: database, API endpoint, ports, SSL
// cert and key, message broker type and url, the donation network, the HD wallet seed and accounts, the wallet provider
// connections go through (hd, or rpc for the node at WalletNode, the chain node when empty) and the conversion rate to
// the display currency.
type ServiceConfig struct {
	Env             string      `mapstructure:"env"`
	DBType          string      `mapstructure:"dbtype"`
	DBConn          string      `mapstructure:"dbconn"`
	RestfulEndpoint string      `mapstructure:"endpoint"`
	Port            string      `mapstructure:"port"`
	SSLPort         string      `mapstructure:"sslport"`
	SSLCert         string      `mapstructure:"sslcert"`
	SSLKey          string      `mapstructure:"sslkey"`
	MbType          string      `mapstructure:"mbtype"`
	MbConn          string      `mapstructure:"mbconn"`
	Chain           BlockConfig `mapstructure:"chain"`
	Seed            string      `mapstructure:"hdseed"`
	Wallet          uint32      `mapstructure:"wallet"`
	Accounts        uint32      `mapstructure:"accounts"`
	WalletProvider  string      `mapstructure:"walletprovider"`
	WalletNode      string      `mapstructure:"walletnode"`
	Rate            string      `mapstructure:"rate"`
	SeedCampaigns   bool        `mapstructure:"seedcampaigns"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDefault)
	v.SetDefault("dbtype", DBTypeDefault)
	v.SetDefault("dbconn", DBConnDefault)
	v.SetDefault("endpoint", RestfulEPDefault)
	v.SetDefault("port", PortDefault)
	v.SetDefault("sslport", "")
	v.SetDefault("sslcert", "")
	v.SetDefault("sslkey", "")
	v.SetDefault("mbtype", MbTypeDefault)
	v.SetDefault("mbconn", MbConnDefault)
	v.SetDefault("chain.name", ChainDefault.Name)
	v.SetDefault("chain.node", ChainDefault.Node)
	v.SetDefault("chain.chainid", ChainDefault.ChainID)
	v.SetDefault("chain.chainname", ChainDefault.ChainName)
	v.SetDefault("chain.currency", ChainDefault.Currency)
	v.SetDefault("chain.symbol", ChainDefault.Symbol)
	v.SetDefault("chain.decimals", ChainDefault.Decimals)
	v.SetDefault("chain.explorer", ChainDefault.Explorer)
	v.SetDefault("chain.contract", ChainDefault.Contract)
	v.SetDefault("chain.confirmations", ChainDefault.Confirmations)
	v.SetDefault("chain.avgblock", ChainDefault.AvgBlock)
	v.SetDefault("hdseed", SeedDefault)
	v.SetDefault("wallet", WalletDefault)
	v.SetDefault("accounts", AccountsDefault)
	v.SetDefault("walletprovider", WalletProviderDefault)
	v.SetDefault("walletnode", "")
	v.SetDefault("rate", RateDefault)
	v.SetDefault("seedcampaigns", true)
}

// ExtractConfiguration reads from the given JSON filename and the environment and returns the ServiceConfig or an
// error otherwise. An empty filename skips the file.
func ExtractConfiguration(filename string) (ServiceConfig, error) {
	var conf ServiceConfig

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("relief")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("json")

		if err := v.ReadInConfig(); err != nil {
			return conf, fmt.Errorf("config: cannot read %s: %w", filename, err)
		}
	}

	if err := v.Unmarshal(&conf); err != nil {
		return conf, fmt.Errorf("config: cannot decode: %w", err)
	}

	return conf, nil
}
