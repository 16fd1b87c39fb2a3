// Package cmd implements the reliefctl commands. Every command works on the database named in the configuration.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tarancss/relief/ledger"
	"github.com/tarancss/relief/lib/config"
	"github.com/tarancss/relief/lib/logger"
	"github.com/tarancss/relief/lib/price"
	"github.com/tarancss/relief/lib/store"
	"github.com/tarancss/relief/lib/store/db"
)

// NewRootCmd returns the reliefctl command with all its subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reliefctl",
		Short:         "Operate the disaster relief campaign ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "json configuration file")
	root.AddCommand(newSeedCmd(), newCampaignsCmd(), newCreateCmd(), newRecordCmd(), newTotalCmd())

	return root
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	_ = godotenv.Load()

	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (config.ServiceConfig, error) {
	path, _ := cmd.Flags().GetString("config")

	conf, err := config.ExtractConfiguration(path)
	if err != nil {
		return conf, err
	}

	logger.Init(conf.Env)

	return conf, nil
}

// session is a ledger open on the configured database.
type session struct {
	conf config.ServiceConfig
	db   store.DB
	l    *ledger.Ledger
}

func open(cmd *cobra.Command) (*session, error) {
	conf, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	rate, err := price.Parse(conf.Rate)
	if err != nil {
		return nil, err
	}

	dh, err := db.New(conf.DBType, conf.DBConn)
	if err != nil {
		return nil, err
	}

	return &session{conf: conf, db: dh, l: ledger.New(dh, rate)}, nil
}

func (s *session) close() {
	s.l.Close()
	_ = db.Close(s.conf.DBType, s.db)
	logger.Sync()
}
