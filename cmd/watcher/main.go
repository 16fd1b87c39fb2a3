// Package main: watcher service.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tarancss/relief/lib/block"
	"github.com/tarancss/relief/lib/config"
	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/msg/broker"
	"github.com/tarancss/relief/lib/store/db"
	"github.com/tarancss/relief/watcher"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9101/metrics")
	interval := flag.Duration("i", 0, "receipt polling interval, defaults to the network average block time")
	flag.Parse()

	_ = godotenv.Load()

	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	logger.Init(conf.Env)
	defer logger.Sync()

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
			logger.Error("metrics API", zap.Error(http.ListenAndServe(":9101", h))) //nolint:gosec
		}()
	}

	// load message broker
	mb, err := broker.New(conf.MbType, conf.MbConn)
	if err != nil {
		time.Sleep(10 * time.Second) //nolint:gomnd // wait for the broker to be ready and try to reconnect

		if mb, err = broker.New(conf.MbType, conf.MbConn); err != nil {
			logger.Fatal("cannot connect to message broker", zap.Error(err))
		}
	}

	if err = mb.Setup(nil); err != nil {
		logger.Fatal("cannot set up message broker", zap.Error(err))
	}

	defer func() {
		logger.Info("closing message broker", zap.Error(mb.Close()))
	}()

	w := watcher.New(dbConn, mb, map[string]block.Chain{chain.Name(): chain}, *interval)

	// capture CTRL+C or docker's SIGTERM for gracious exit
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		logger.Info("program killed")
		w.Stop()
	}()

	logger.Info("watch: " + <-w.Watch())
}
