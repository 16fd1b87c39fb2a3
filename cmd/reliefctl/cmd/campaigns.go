package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tarancss/relief/ledger"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Save the default campaigns when there are none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			seeded, err := s.l.Seed(cmd.Context())
			if err != nil {
				return err
			}

			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "default campaigns saved")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "campaigns already present, nothing to do")
			}

			return nil
		},
	}
}

func newCampaignsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "campaigns",
		Short: "List campaigns, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			cs, err := s.l.Campaigns(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				e := json.NewEncoder(cmd.OutOrStdout())
				e.SetIndent("", "  ")

				return e.Encode(cs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0) //nolint:gomnd
			fmt.Fprintln(w, "ID\tTITLE\tTAG\tRAISED\tGOAL\t%\tSTATUS")

			for _, c := range cs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%d\t%s\n", c.ID, c.Title, c.Tag, c.Raised, c.Goal, c.Percent,
					c.Status)
			}

			return w.Flush()
		},
	}
	c.Flags().Bool("json", false, "print JSON")

	return c
}

func newCreateCmd() *cobra.Command {
	var in ledger.CreateInput

	c := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			id, err := s.l.Create(cmd.Context(), in)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), id)

			return nil
		},
	}
	c.Flags().StringVar(&in.Title, "title", "", "campaign title")
	c.Flags().StringVar(&in.Tag, "tag", ledger.TagOther, "campaign tag")
	c.Flags().StringVar(&in.Desc, "desc", "", "campaign description")
	c.Flags().Float64Var(&in.Goal, "goal", 0, "goal in display currency")
	c.Flags().StringVar(&in.Img, "img", "", "image key or url")
	c.Flags().StringVar(&in.CreatorAddress, "creator", "", "creator wallet address")

	return c
}

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <campaign id> <amount>",
		Short: "Credit a donation, in native currency, received outside the portal",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("bad amount %q: %w", args[1], err)
			}

			s, err := open(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if err = s.l.RecordDonation(cmd.Context(), args[0], amount); err != nil {
				return err
			}

			c, err := s.l.Campaign(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "campaign not found, nothing recorded")

				return nil //nolint:nilerr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s raised %.2f of %.2f (%d%%) %s\n", c.Title, c.Raised, c.Goal, c.Percent,
				c.Status)

			return nil
		},
	}
}
