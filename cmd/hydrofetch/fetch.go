package main

import (
	"github.com/spf13/cobra"

	"github.com/datallboy/hydrofetch/internal/app"
	"github.com/datallboy/hydrofetch/internal/source"
)

func newFetchCmd(flags *rootFlags) *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "fetch <source>",
		Short: "Download the files of one data source",
		Long: "Builds the job list for a source from its settings and downloads it.\n" +
			"Files already present are skipped, so a rerun only fetches what is missing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := source.ParseKind(args[0])
			if err != nil {
				return err
			}

			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			ri, err := flags.loadRunInfo(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, cleanup, err := buildApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer cleanup()

			a.Logger.Info("Starting %s download", kind)
			report, err := a.Fetch(ctx, app.FetchRequest{Kind: kind, Model: model, RunInfo: ri})
			if err != nil {
				return err
			}
			if report.BatchID != "" {
				a.Logger.Info("Recorded batch %s", report.BatchID)
			}
			if ctx.Err() != nil {
				return &exitError{code: 130, err: ctx.Err()}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "model, analysis or API collection (e.g. HRDPS, RDPA, daily-mean)")
	return cmd
}
