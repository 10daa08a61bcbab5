package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datallboy/hydrofetch/internal/source"
)

func newSourcesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List supported sources and their configured models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, k := range source.Kinds() {
				models := source.Models(k, cfg.Sources)
				if len(models) == 0 {
					fmt.Fprintln(out, k)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", k, strings.Join(models, ", "))
			}
			return nil
		},
	}
}
