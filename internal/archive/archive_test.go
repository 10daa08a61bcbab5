package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/hydrofetch/internal/domain"
)

func TestArchiveFilesWithData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	write := func(name, body string) domain.Job {
		job := domain.NewJob("snodas", "https://x/"+name, dir, name)
		require.NoError(t, os.WriteFile(job.Destination, []byte(body), 0644))
		return job
	}
	a := write("a.grib2", "aaaa")
	b := write("b.grib2", "bb")

	arc, err := Open(ctx, "mem://", nil)
	require.NoError(t, err)
	defer arc.Close()

	outcomes := []domain.Outcome{
		{Job: a, Status: domain.StatusSucceeded},
		{Job: b, Status: domain.StatusSkipped},
		{Job: domain.NewJob("snodas", "https://x/c", dir, "c.grib2"), Status: domain.StatusFailed},
	}

	res, err := arc.Archive(ctx, dir, outcomes)
	require.NoError(t, err)
	assert.Equal(t, Result{Uploaded: 2, Bytes: 6}, res)

	data, err := arc.bucket.ReadAll(ctx, "snodas/a.grib2")
	require.NoError(t, err)
	assert.Equal(t, "aaaa", string(data))

	data, err = arc.bucket.ReadAll(ctx, "snodas/b.grib2")
	require.NoError(t, err)
	assert.Equal(t, "bb", string(data))

	ok, err := arc.bucket.Exists(ctx, "snodas/c.grib2")
	require.NoError(t, err)
	assert.False(t, ok)

	// a second pass finds everything in place
	res, err = arc.Archive(ctx, dir, outcomes)
	require.NoError(t, err)
	assert.Equal(t, Result{Existing: 2}, res)
}

func TestArchiveSameNameInTwoCollections(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var outcomes []domain.Outcome
	for _, coll := range []string{"daily-mean", "hourly"} {
		sub := filepath.Join(dir, coll)
		require.NoError(t, os.MkdirAll(sub, 0755))
		job := domain.NewJob("eccc_api", "https://x/"+coll, sub, "01AB001.csv")
		require.NoError(t, os.WriteFile(job.Destination, []byte(coll), 0644))
		outcomes = append(outcomes, domain.Outcome{Job: job, Status: domain.StatusSucceeded})
	}

	arc, err := Open(ctx, "mem://", nil)
	require.NoError(t, err)
	defer arc.Close()

	res, err := arc.Archive(ctx, dir, outcomes)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Zero(t, res.Existing)

	for _, coll := range []string{"daily-mean", "hourly"} {
		data, err := arc.bucket.ReadAll(ctx, "eccc_api/"+coll+"/01AB001.csv")
		require.NoError(t, err)
		assert.Equal(t, coll, string(data))
	}
}

func TestArchiveContinuesPastFailure(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	arc, err := Open(ctx, "mem://", nil)
	require.NoError(t, err)
	defer arc.Close()

	gone := domain.NewJob("snodas", "https://x/gone", dir, "gone.tar")
	kept := domain.NewJob("snodas", "https://x/kept", dir, "kept.tar")
	require.NoError(t, os.WriteFile(kept.Destination, []byte("tar"), 0644))

	res, err := arc.Archive(ctx, dir, []domain.Outcome{
		{Job: gone, Status: domain.StatusSucceeded},
		{Job: kept, Status: domain.StatusSucceeded},
	})
	assert.Error(t, err)
	assert.Equal(t, 1, res.Uploaded)

	// the next run skips the download but still owes the upload
	require.NoError(t, os.WriteFile(gone.Destination, []byte("late"), 0644))
	res, err = arc.Archive(ctx, dir, []domain.Outcome{
		{Job: gone, Status: domain.StatusSkipped},
		{Job: kept, Status: domain.StatusSkipped},
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Uploaded: 1, Existing: 1, Bytes: 4}, res)
}

func TestArchiveToFileBucket(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dst := t.TempDir()

	job := domain.NewJob("snowcast", "https://x/swe.asc", src, "swe.asc")
	require.NoError(t, os.WriteFile(job.Destination, []byte("grid"), 0644))

	arc, err := Open(ctx, "file://"+filepath.ToSlash(dst), nil)
	require.NoError(t, err)
	defer arc.Close()

	_, err = arc.Archive(ctx, src, []domain.Outcome{{Job: job, Status: domain.StatusSucceeded}})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dst, "snowcast", "swe.asc"))
}

func TestArchiveMissingLocalFile(t *testing.T) {
	ctx := context.Background()
	arc, err := Open(ctx, "mem://", nil)
	require.NoError(t, err)
	defer arc.Close()

	dir := t.TempDir()
	job := domain.NewJob("snodas", "https://x/gone", dir, "gone")
	_, err = arc.Archive(ctx, dir, []domain.Outcome{{Job: job, Status: domain.StatusSucceeded}})
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	job := domain.NewJob("eccc_api", "u", filepath.FromSlash("/out/daily-mean"), "01AD001.csv")
	assert.Equal(t, "eccc_api/daily-mean/01AD001.csv", Key(filepath.FromSlash("/out"), job))
	assert.Equal(t, "eccc_api/01AD001.csv", Key(filepath.FromSlash("/out/daily-mean"), job))
	// outside the output dir only the base name is kept
	assert.Equal(t, "eccc_api/01AD001.csv", Key(filepath.FromSlash("/elsewhere"), job))
}
