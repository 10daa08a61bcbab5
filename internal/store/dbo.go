package store

import (
	"database/sql"
	"time"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// batchDBO maps to the batches table
type batchDBO struct {
	ID         string         `db:"id"`
	Source     string         `db:"source"`
	Model      sql.NullString `db:"model"`
	StartedAt  int64          `db:"started_at"`
	FinishedAt int64          `db:"finished_at"`
	Jobs       int            `db:"jobs"`
	Succeeded  int            `db:"succeeded"`
	Skipped    int            `db:"skipped"`
	Empty      int            `db:"empty"`
	Failed     int            `db:"failed"`
	Bytes      int64          `db:"bytes"`
}

// Mapper: DBO to Domain BatchRecord
func (b *batchDBO) ToDomain() domain.BatchRecord {
	return domain.BatchRecord{
		ID:         b.ID,
		SourceID:   b.Source,
		Model:      b.Model.String,
		StartedAt:  unixTime(b.StartedAt),
		FinishedAt: unixTime(b.FinishedAt),
		Summary: domain.Summary{
			Jobs:      b.Jobs,
			Succeeded: b.Succeeded,
			Skipped:   b.Skipped,
			Empty:     b.Empty,
			Failed:    b.Failed,
			Bytes:     b.Bytes,
		},
	}
}

// Mapper: Domain BatchRecord to DBO
func (b *batchDBO) FromDomain(rec domain.BatchRecord) {
	b.ID = rec.ID
	b.Source = rec.SourceID
	b.Model = sql.NullString{String: rec.Model, Valid: rec.Model != ""}
	b.StartedAt = unixOrZero(rec.StartedAt)
	b.FinishedAt = unixOrZero(rec.FinishedAt)
	b.Jobs = rec.Summary.Jobs
	b.Succeeded = rec.Summary.Succeeded
	b.Skipped = rec.Summary.Skipped
	b.Empty = rec.Summary.Empty
	b.Failed = rec.Summary.Failed
	b.Bytes = rec.Summary.Bytes
}

// outcomeDBO maps to the outcomes table
type outcomeDBO struct {
	BatchID     string         `db:"batch_id"`
	SourceID    string         `db:"source_id"`
	Address     string         `db:"address"`
	Destination string         `db:"destination"`
	Status      string         `db:"status"`
	Bytes       int64          `db:"bytes"`
	Attempts    int            `db:"attempts"`
	Class       sql.NullString `db:"class"`
	StatusCode  int            `db:"status_code"`
	Error       sql.NullString `db:"error"`
	DurationNS  int64          `db:"duration_ns"`
}

// Mapper: DBO to Domain OutcomeRecord
func (o *outcomeDBO) ToDomain() domain.OutcomeRecord {
	return domain.OutcomeRecord{
		BatchID:     o.BatchID,
		SourceID:    o.SourceID,
		Address:     o.Address,
		Destination: o.Destination,
		Status:      domain.JobStatus(o.Status),
		Bytes:       o.Bytes,
		Attempts:    o.Attempts,
		Class:       domain.FailureClass(o.Class.String),
		StatusCode:  o.StatusCode,
		Error:       o.Error.String,
		Duration:    time.Duration(o.DurationNS),
	}
}

// Mapper: Domain OutcomeRecord to DBO
func (o *outcomeDBO) FromDomain(rec domain.OutcomeRecord) {
	o.BatchID = rec.BatchID
	o.SourceID = rec.SourceID
	o.Address = rec.Address
	o.Destination = rec.Destination
	o.Status = string(rec.Status)
	o.Bytes = rec.Bytes
	o.Attempts = rec.Attempts
	o.Class = sql.NullString{String: string(rec.Class), Valid: rec.Class != domain.ClassNone}
	o.StatusCode = rec.StatusCode
	o.Error = sql.NullString{String: rec.Error, Valid: rec.Error != ""}
	o.DurationNS = int64(rec.Duration)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
