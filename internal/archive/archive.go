// Package archive copies the files a batch produced into a blob bucket.
// It runs after the batch has joined and never sees in-flight files.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/datallboy/hydrofetch/internal/diag"
	"github.com/datallboy/hydrofetch/internal/domain"
)

type Archiver struct {
	bucket *blob.Bucket
	sink   diag.Sink
}

// Result counts what one Archive call did.
type Result struct {
	Uploaded int
	Existing int
	Bytes    int64
}

// Open opens the bucket at url (file:///..., s3://..., mem://).
func Open(ctx context.Context, url string, sink diag.Sink) (*Archiver, error) {
	bkt, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error opening bucket: %w", err)
	}
	return New(bkt, sink), nil
}

func New(bkt *blob.Bucket, sink diag.Sink) *Archiver {
	if sink == nil {
		sink = diag.Discard
	}
	return &Archiver{bucket: bkt, sink: sink}
}

// Key is where a job's file lands in the bucket: the source, then the
// destination's path below outputDir. Files outside outputDir keep only
// their base name.
func Key(outputDir string, job domain.Job) string {
	rel, err := filepath.Rel(outputDir, job.Destination)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(job.Destination)
	}
	return path.Join(job.SourceID, filepath.ToSlash(rel))
}

// Archive uploads every outcome with data on disk. Skipped files are
// included so a file whose first upload failed is picked up by a later run;
// keys already in the bucket are left alone. A failed upload does not stop
// the others, all failures are returned together.
func (a *Archiver) Archive(ctx context.Context, outputDir string, outcomes []domain.Outcome) (Result, error) {
	var (
		res  Result
		errs []error
	)
	for _, o := range outcomes {
		if !o.HasData() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, errors.Join(append(errs, err)...)
		}
		em := diag.Emitter{Sink: a.sink, SourceID: o.Job.SourceID}
		key := Key(outputDir, o.Job)

		exists, err := a.bucket.Exists(ctx, key)
		if err != nil {
			errs = append(errs, fmt.Errorf("check %s: %w", key, err))
			continue
		}
		if exists {
			em.Debug("Archive object %s already exists", key)
			res.Existing++
			continue
		}

		n, err := a.upload(ctx, key, o.Job.Destination)
		if err != nil {
			em.Warn("Could not archive %s: %v", o.Job.Destination, err)
			errs = append(errs, err)
			continue
		}
		em.Info("Archived %s to %s", o.Job.Destination, key)
		res.Uploaded++
		res.Bytes += n
	}
	return res, errors.Join(errs...)
}

func (a *Archiver) upload(ctx context.Context, key, src string) (int64, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	w, err := a.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return 0, fmt.Errorf("create writer for %s: %w", key, err)
	}
	n, err := w.ReadFrom(f)
	if err != nil {
		w.Close()
		return n, fmt.Errorf("upload %s: %w", key, err)
	}
	// Close commits the object
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("commit %s: %w", key, err)
	}
	return n, nil
}

func (a *Archiver) Close() error {
	return a.bucket.Close()
}
