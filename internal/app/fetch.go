package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/domain"
	"github.com/datallboy/hydrofetch/internal/engine"
	"github.com/datallboy/hydrofetch/internal/runinfo"
	"github.com/datallboy/hydrofetch/internal/source"
)

// FetchRequest names what to retrieve. RunInfo is set when the run is
// driven by Delft-FEWS.
type FetchRequest struct {
	Kind    source.Kind
	Model   string
	RunInfo *runinfo.RunInfo
}

// FetchReport is what a finished run produced.
type FetchReport struct {
	BatchID  string
	Outcomes []domain.Outcome
	Summary  domain.Summary
	Archived int
}

// Fetch plans the jobs for one source, runs them to completion, then hands
// the outcomes to the archive and the history store. The error is non-nil
// when the batch policy rejects the run, even though the report is filled.
func (a *Context) Fetch(ctx context.Context, req FetchRequest) (*FetchReport, error) {
	cfg := a.Config
	started := a.now()

	outputDir := cfg.OutputDir
	diagFile := ""
	if cfg.Diag.Enabled {
		diagFile = cfg.Diag.XMLFile
	}
	var plan source.Request
	if ri := req.RunInfo; ri != nil {
		if dir := ri.DestinationDir(); dir != "" {
			outputDir = dir
		}
		if f := ri.DiagnosticFile(); f != "" {
			diagFile = f
		}
		plan.Start, plan.End = ri.Start, ri.End
	}
	plan.Now = started
	plan.OutputDir = outputDir

	var fews *diag.FEWSWriter
	if diagFile != "" {
		fews = diag.NewFEWSWriter(diag.ParseLevel(cfg.Log.Level))
	}
	sink := a.sink(fews)
	em := diag.Emitter{Sink: sink, SourceID: string(req.Kind)}

	report, err := a.run(ctx, req, plan, sink, em)
	if err != nil {
		em.Error("%v", err)
	}

	if fews != nil {
		if werr := fews.WriteFile(diagFile); werr != nil {
			a.logWarn("could not write diagnostics to %s: %v", diagFile, werr)
		}
	}
	return report, err
}

func (a *Context) run(ctx context.Context, req FetchRequest, plan source.Request, sink diag.Sink, em diag.Emitter) (*FetchReport, error) {
	src, err := source.New(req.Kind, req.Model, a.Config.Sources, source.Deps{
		Fetcher: a.Fetcher,
		Policy:  a.Policy,
		Sink:    sink,
	})
	if err != nil {
		return nil, err
	}

	p, err := src.Plan(plan)
	if err != nil {
		return nil, err
	}
	if err := source.EnsureDirs(p.Jobs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	retriever := p.Retriever
	if retriever == nil {
		retriever = engine.NewDownloader(a.Fetcher)
	}
	coord, err := engine.NewCoordinator(a.Config.MaxNumThreads, retriever, sink)
	if err != nil {
		return nil, err
	}

	outcomes := coord.Submit(ctx, p.Jobs).Join()
	report := &FetchReport{Outcomes: outcomes, Summary: domain.Summarize(outcomes)}

	s := report.Summary
	em.Info("Finished %d jobs: %d downloaded (%s), %d skipped, %d empty, %d failed",
		s.Jobs, s.Succeeded, humanize.Bytes(uint64(s.Bytes)), s.Skipped, s.Empty, s.Failed)

	var policyErr error
	if p.RequireAny {
		policyErr = engine.RequireAny(outcomes)
	}

	// post-processing only ever sees joined outcomes
	if a.Archive != nil {
		res, err := a.Archive.Archive(ctx, plan.OutputDir, outcomes)
		report.Archived = res.Uploaded
		if err != nil {
			em.Warn("Archiving failed: %v", err)
		} else if res.Uploaded > 0 {
			em.Info("Archived %d files (%s)", res.Uploaded, humanize.Bytes(uint64(res.Bytes)))
		}
	}

	if a.Store != nil {
		id, err := a.record(ctx, req, plan.Now, outcomes, report.Summary)
		if err != nil {
			em.Warn("Could not record batch history: %v", err)
		}
		report.BatchID = id
	}

	return report, policyErr
}

func (a *Context) record(ctx context.Context, req FetchRequest, started time.Time, outcomes []domain.Outcome, s domain.Summary) (string, error) {
	// history is written even when the run was interrupted
	ctx = context.WithoutCancel(ctx)

	id, err := a.Store.SaveBatch(ctx, domain.BatchRecord{
		SourceID:   string(req.Kind),
		Model:      req.Model,
		StartedAt:  started,
		FinishedAt: a.now(),
		Summary:    s,
	})
	if err != nil {
		return "", err
	}
	return id, a.Store.SaveOutcomes(ctx, id, outcomes)
}

func (a *Context) sink(fews *diag.FEWSWriter) diag.Sink {
	var sinks []diag.Sink
	if a.Logger != nil {
		sinks = append(sinks, a.Logger)
	}
	if fews != nil {
		sinks = append(sinks, fews)
	}
	return diag.Multi(sinks...)
}

func (a *Context) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}

func (a *Context) logWarn(format string, v ...any) {
	if a.Logger != nil {
		a.Logger.Warn(format, v...)
	}
}

// ExitCode maps a Fetch error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrConfiguration):
		return 2
	case errors.Is(err, domain.ErrNoData):
		return 3
	default:
		return 1
	}
}
