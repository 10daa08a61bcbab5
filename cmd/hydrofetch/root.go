package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datallboy/hydrofetch/internal/app"
	"github.com/datallboy/hydrofetch/internal/archive"
	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/infra/config"
	"github.com/datallboy/hydrofetch/internal/infra/logger"
	"github.com/datallboy/hydrofetch/internal/runinfo"
	"github.com/datallboy/hydrofetch/internal/store"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	runInfo    string
	outputDir  string
	maxThreads int
}

// exitError carries a specific exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func Execute() int {
	// We create a context that is cancelled when the user hits Ctrl+C
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return app.ExitCode(err)
	}
	return 0
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "hydrofetch",
		Short:         "Retrieve meteorological and hydrological data files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to hydrofetch.yaml")
	pf.StringVar(&flags.runInfo, "run-info", "", "Delft-FEWS run info file")
	pf.StringVarP(&flags.outputDir, "output-dir", "o", "", "override output_dir")
	pf.IntVar(&flags.maxThreads, "max-threads", 0, "override max_num_threads")

	cmd.AddCommand(
		newFetchCmd(flags),
		newSourcesCmd(flags),
		newHistoryCmd(flags),
		newServeCmd(flags),
		newConfigCmd(flags),
	)
	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}
	if f.maxThreads != 0 {
		cfg.MaxNumThreads = f.maxThreads
	}
	if f.runInfo != "" {
		cfg.RunInfoFile = f.runInfo
	}
	return cfg, nil
}

func (f *rootFlags) loadRunInfo(cfg *config.Config) (*runinfo.RunInfo, error) {
	if cfg.RunInfoFile == "" {
		return nil, nil
	}
	return runinfo.Load(cfg.RunInfoFile)
}

// buildApp wires the application context. The returned cleanup closes
// whatever was opened, in reverse order.
func buildApp(ctx context.Context, cfg *config.Config, withArchive bool) (*app.Context, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	log, err := logger.New(cfg.Log.Path, cfg.Log.Name, diag.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, cleanup, fmt.Errorf("could not open log file: %w", err)
	}
	closers = append(closers, log.Close)

	a := app.NewContext(cfg, log)

	if cfg.Store.Driver != "" {
		st, err := store.NewPersistentStore(cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, st.Close)
		a.Store = st
	}

	if withArchive && cfg.Archive.BucketURL != "" {
		arc, err := archive.Open(ctx, cfg.Archive.BucketURL, log)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		closers = append(closers, arc.Close)
		a.Archive = arc
	}

	return a, cleanup, nil
}
