package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// ChunkSize is how much of a body is held in memory at once.
const ChunkSize = 1024

// writeAtomic streams r into <dest>.part and renames it to dest once the
// whole body is on disk. On any failure the .part file is removed, so a
// truncated file is never visible at dest.
func writeAtomic(ctx context.Context, dest, part string, r io.Reader, chunkSize int) (int64, error) {
	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, &FetchError{Class: domain.ClassIO, Err: fmt.Errorf("could not open part file: %w", err)}
	}

	n, err := streamChunks(ctx, f, r, chunkSize)
	if err == nil {
		if serr := f.Sync(); serr != nil {
			err = &FetchError{Class: domain.ClassIO, Err: fmt.Errorf("sync %s: %w", part, serr)}
		}
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &FetchError{Class: domain.ClassIO, Err: fmt.Errorf("close %s: %w", part, cerr)}
	}
	if err != nil {
		os.Remove(part)
		return n, err
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return n, &FetchError{Class: domain.ClassIO, Err: fmt.Errorf("failed to finalize %s: %w", dest, err)}
	}
	return n, nil
}

// WriteFile materialises r at job.Destination through the job's part file.
// Retrievers that build their output in memory use it to keep the same
// all-or-nothing guarantee as raw downloads.
func WriteFile(ctx context.Context, job domain.Job, r io.Reader) (int64, error) {
	return writeAtomic(ctx, job.Destination, job.PartPath(), r, ChunkSize)
}

// streamChunks copies r to w through a single chunkSize buffer. io.Copy is
// avoided on purpose: *os.File's ReadFrom would pick its own buffer size.
func streamChunks(ctx context.Context, w io.Writer, r io.Reader, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}
	buf := make([]byte, chunkSize)

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		nr, rerr := r.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, &FetchError{Class: domain.ClassIO, Err: fmt.Errorf("write error: %w", werr)}
			}
			if nw != nr {
				return total, &FetchError{Class: domain.ClassIO, Err: io.ErrShortWrite}
			}
		}

		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			return total, &FetchError{Class: domain.ClassConnection, Err: fmt.Errorf("read body: %w", rerr)}
		}
	}
}
