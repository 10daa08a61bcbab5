package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/domain"
)

// work drives one job to a terminal outcome.
func (b *Batch) work(ctx context.Context, job domain.Job) (out domain.Outcome) {
	start := time.Now()
	em := diag.Emitter{Sink: b.sink, SourceID: job.SourceID}
	defer func() { out.Duration = time.Since(start) }()

	// Idempotence is checked before taking a permit so reruns cost nothing
	exists, err := destinationExists(job.Destination)
	if err != nil {
		em.Warn("Could not stat %s: %v", job.Destination, err)
		return failedOutcome(job, 0, err)
	}
	if exists {
		em.Info("File %s already exists. Download cancelled.", job.Destination)
		return domain.Outcome{Job: job, Status: domain.StatusSkipped}
	}

	if err := b.limiter.Acquire(ctx); err != nil {
		em.Warn("Gave up waiting for a download slot for %s: %v", job.Address, err)
		return failedOutcome(job, 0, err)
	}
	defer func() {
		b.limiter.Release()
		em.Debug("Maximum number of concurrent workers allowed = %d, workers active = %d, workers pending = %d",
			b.limiter.Capacity(), b.limiter.InUse(), b.pending.Load())
	}()

	em.Debug("Preparing download for url [%s]", job.Address)
	t, err := b.retriever.Retrieve(ctx, job)
	if err != nil {
		out = failedOutcome(job, t.Attempts, err)
		if out.Status == domain.StatusEmpty {
			em.Warn("No data returned for %s", job.Address)
		} else {
			reportFailure(em, out)
		}
		return out
	}

	em.Info("Downloading URL complete [%s] (%s)", job.Address, humanize.Bytes(uint64(t.Bytes)))
	return domain.Outcome{Job: job, Status: domain.StatusSucceeded, Bytes: t.Bytes, Attempts: t.Attempts}
}

func destinationExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &FetchError{Class: domain.ClassIO, Err: err}
}

func failedOutcome(job domain.Job, attempts int, err error) domain.Outcome {
	if errors.Is(err, domain.ErrNoData) {
		return domain.Outcome{Job: job, Status: domain.StatusEmpty, Attempts: attempts}
	}
	class, code := Classify(err)
	return domain.Outcome{
		Job:        job,
		Status:     domain.StatusFailed,
		Attempts:   attempts,
		Class:      class,
		StatusCode: code,
		Err:        err,
	}
}

func reportFailure(em diag.Emitter, out domain.Outcome) {
	switch out.Class {
	case domain.ClassHTTP:
		if out.StatusCode != 0 {
			em.Warn("Failed to download URL %s with status code: %d", out.Job.Address, out.StatusCode)
			return
		}
		em.Warn("HTTP error for URL %s: %v", out.Job.Address, out.Err)
	case domain.ClassConnection:
		em.Warn("Connection error for URL %s: %v", out.Job.Address, out.Err)
	case domain.ClassIO:
		em.Warn("Error writing to file %s: %v", out.Job.Destination, out.Err)
	default:
		em.Error("Unexpected error for URL %s: %v", out.Job.Address, out.Err)
	}
}

func panicOutcome(job domain.Job, v any) domain.Outcome {
	return domain.Outcome{
		Job:    job,
		Status: domain.StatusFailed,
		Class:  domain.ClassOther,
		Err:    fmt.Errorf("worker panic: %v", v),
	}
}
