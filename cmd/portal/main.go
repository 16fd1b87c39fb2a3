// Package main: donation portal service.
//
// The portal and the watcher services should share the database and the message broker: the portal records
// donations and publishes them, the watcher follows their transactions.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tarancss/relief/ledger"
	"github.com/tarancss/relief/lib/block"
	"github.com/tarancss/relief/lib/config"
	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/msg"
	"github.com/tarancss/relief/lib/msg/broker"
	"github.com/tarancss/relief/lib/price"
	"github.com/tarancss/relief/lib/store/db"
	"github.com/tarancss/relief/lib/wallet"
	"github.com/tarancss/relief/portal"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100/metrics")
	flag.Parse()

	// variables in a .env file are loaded into the environment, if present
	_ = godotenv.Load()

	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	logger.Init(conf.Env)
	defer logger.Sync()

	logger.Info("configuration loaded", zap.String("db", conf.DBType), zap.String("mb", conf.MbType),
		logger.Net(conf.Chain.Name))

	// connect to database
	dbConn, err := db.New(conf.DBType, conf.DBConn)
	if err != nil {
		logger.Fatal("cannot connect to database", zap.Error(err))
	}

	defer func() {
		logger.Info("disconnecting database", zap.Error(db.Close(conf.DBType, dbConn)))
	}()

	// load blockchain client
	chain, err := block.Init(conf.Chain)
	if err != nil {
		logger.Fatal("cannot load blockchain client", zap.Error(err))
	}
	defer chain.Close()

	// load Prometheus monitor
	if *monitor {
		go func() {
			logger.Info("serving metrics API")

			h := http.NewServeMux()
			h.Handle("/metrics", promhttp.Handler())
			logger.Error("metrics API", zap.Error(http.ListenAndServe(":9100", h))) //nolint:gosec
		}()
	}

	// load message broker
	mb := connectBroker(conf.MbType, conf.MbConn)

	defer func() {
		logger.Info("closing message broker", zap.Error(mb.Close()))
	}()

	// load HD wallet accounts
	seed, err := hex.DecodeString(conf.Seed)
	if err != nil {
		logger.Fatal("bad HD seed", zap.Error(err))
	}

	keys, err := wallet.NewHDProvider(seed, conf.Wallet, conf.Accounts)
	if err != nil {
		logger.Fatal("cannot load HD wallet", zap.Error(err))
	}

	rate, err := price.Parse(conf.Rate)
	if err != nil {
		logger.Fatal("bad conversion rate", zap.Error(err))
	}

	l := ledger.New(dbConn, rate)
	defer l.Close()

	if conf.SeedCampaigns {
		if _, err = l.Seed(context.Background()); err != nil {
			logger.Error("cannot seed campaigns", zap.Error(err))
		}
	}

	// wallet connections go through the HD wallet or a node
	node := conf.WalletNode
	if node == "" {
		node = conf.Chain.Node
	}

	provider, err := wallet.Select(context.Background(), conf.WalletProvider, node, keys)
	if err != nil {
		logger.Fatal("cannot load wallet provider", zap.String("type", conf.WalletProvider), zap.Error(err))
	}

	if rp, ok := provider.(*wallet.RPCProvider); ok {
		defer rp.Close()
	}

	logger.Info("wallet provider loaded", zap.String("type", conf.WalletProvider))

	// create portal service
	p := portal.New(l, chain, wallet.NewAdapter(provider, conf.Chain), keys, mb)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		logger.Info("program killed")
		p.Stop()
	}()

	// manage watcher events
	if err = p.ManageEvents(); err != nil {
		logger.Error("cannot set up broker readers for events", zap.Error(err))
	}

	// init RESTful API, wait for its return and log response
	logger.Info("portal: " + p.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))
}

// connectBroker connects to the message broker, trying again once after 10s as the broker may still be starting.
func connectBroker(t, conn string) msg.MsgBroker {
	mb, err := broker.New(t, conn)
	if err != nil {
		logger.Warn("cannot connect to message broker, retrying", zap.String("type", t), zap.Error(err))
		time.Sleep(10 * time.Second) //nolint:gomnd

		if mb, err = broker.New(t, conn); err != nil {
			logger.Fatal("cannot connect to message broker", zap.String("type", t), zap.Error(err))
		}
	}

	if err = mb.Setup(nil); err != nil {
		logger.Fatal("cannot set up message broker", zap.Error(err))
	}

	return mb
}
