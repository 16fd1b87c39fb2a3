package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tarancss/relief/lib/block"
)

func newTotalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "total",
		Short: "Print the total held by the donation contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			c, err := block.Init(conf.Chain)
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", block.TotalRaised(cmd.Context(), c), conf.Chain.Symbol)

			return nil
		},
	}
}
