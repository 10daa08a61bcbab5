package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/datallboy/hydrofetch/internal/domain"
)

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fetch runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Driver == "" {
				return fmt.Errorf("%w: history needs store.driver", domain.ErrConfiguration)
			}

			a, cleanup, err := buildApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer cleanup()

			batches, err := a.Store.ListBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSOURCE\tSTARTED\tJOBS\tOK\tSKIPPED\tEMPTY\tFAILED\tSIZE")
			for _, b := range batches {
				s := b.Summary
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					b.ID, label(b), humanize.Time(b.StartedAt),
					s.Jobs, s.Succeeded, s.Skipped, s.Empty, s.Failed, humanize.Bytes(uint64(s.Bytes)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func label(b domain.BatchRecord) string {
	if b.Model == "" {
		return b.SourceID
	}
	return b.SourceID + "/" + b.Model
}
