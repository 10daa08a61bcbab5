package engine

import (
	"context"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// Transfer describes what a successful retrieval produced.
type Transfer struct {
	Bytes    int64
	Attempts int
}

// Retriever performs one job. Any client, an HTTP download, a paginated API
// query or a vendor SDK, plugs into the coordinator through it. Returning an
// error wrapping domain.ErrNoData marks the job empty rather than failed.
type Retriever interface {
	Retrieve(ctx context.Context, job domain.Job) (Transfer, error)
}

type RetrieverFunc func(ctx context.Context, job domain.Job) (Transfer, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, job domain.Job) (Transfer, error) {
	return f(ctx, job)
}

// Downloader is the raw-file Retriever: fetch once, stream to disk. A failed
// status is final, the file either exists upstream or it does not.
type Downloader struct {
	fetcher   Fetcher
	chunkSize int
}

func NewDownloader(f Fetcher) *Downloader {
	return &Downloader{fetcher: f, chunkSize: ChunkSize}
}

func (d *Downloader) Retrieve(ctx context.Context, job domain.Job) (Transfer, error) {
	body, err := d.fetcher.Fetch(ctx, job)
	if err != nil {
		return Transfer{Attempts: 1}, err
	}
	defer body.Close()

	n, err := writeAtomic(ctx, job.Destination, job.PartPath(), body, d.chunkSize)
	return Transfer{Bytes: n, Attempts: 1}, err
}
