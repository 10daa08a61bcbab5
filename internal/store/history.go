package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"

	"github.com/datallboy/hydrofetch/internal/domain"
)

// SaveBatch inserts rec, assigning a KSUID when it has no ID yet, and
// returns the ID.
func (s *PersistentStore) SaveBatch(ctx context.Context, rec domain.BatchRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = ksuid.New().String()
	}

	var dbo batchDBO
	dbo.FromDomain(rec)

	query := `INSERT INTO batches (id, source, model, started_at, finished_at, jobs, succeeded, skipped, empty, failed, bytes)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		dbo.ID, dbo.Source, dbo.Model, dbo.StartedAt, dbo.FinishedAt,
		dbo.Jobs, dbo.Succeeded, dbo.Skipped, dbo.Empty, dbo.Failed, dbo.Bytes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save batch: %w", err)
	}
	return rec.ID, nil
}

// SaveOutcomes records every outcome of a batch in one transaction.
func (s *PersistentStore) SaveOutcomes(ctx context.Context, batchID string, outcomes []domain.Outcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO outcomes (batch_id, source_id, address, destination, status, bytes, attempts, class, status_code, error, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range outcomes {
		var dbo outcomeDBO
		dbo.FromDomain(domain.NewOutcomeRecord(batchID, o))
		if _, err := stmt.ExecContext(ctx,
			dbo.BatchID, dbo.SourceID, dbo.Address, dbo.Destination, dbo.Status, dbo.Bytes,
			dbo.Attempts, dbo.Class, dbo.StatusCode, dbo.Error, dbo.DurationNS,
		); err != nil {
			return fmt.Errorf("failed to save outcome for %s: %w", o.Job.Destination, err)
		}
	}

	return tx.Commit()
}

const batchColumns = `id, source, model, started_at, finished_at, jobs, succeeded, skipped, empty, failed, bytes`

func scanBatch(row interface{ Scan(...any) error }) (domain.BatchRecord, error) {
	var b batchDBO
	err := row.Scan(&b.ID, &b.Source, &b.Model, &b.StartedAt, &b.FinishedAt,
		&b.Jobs, &b.Succeeded, &b.Skipped, &b.Empty, &b.Failed, &b.Bytes)
	if err != nil {
		return domain.BatchRecord{}, err
	}
	return b.ToDomain(), nil
}

// ListBatches returns the most recent batches first. KSUIDs sort by
// creation time, so the ID breaks ties within a second.
func (s *PersistentStore) ListBatches(ctx context.Context, limit int) ([]domain.BatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + batchColumns + ` FROM batches ORDER BY started_at DESC, id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BatchRecord
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PersistentStore) GetBatch(ctx context.Context, id string) (domain.BatchRecord, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = ? LIMIT 1`

	b, err := scanBatch(s.db.QueryRowContext(ctx, s.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BatchRecord{}, fmt.Errorf("batch %s: %w", id, domain.ErrNotFound)
	}
	return b, err
}

func (s *PersistentStore) ListOutcomes(ctx context.Context, batchID string) ([]domain.OutcomeRecord, error) {
	query := `SELECT batch_id, source_id, address, destination, status, bytes, attempts, class, status_code, error, duration_ns
              FROM outcomes WHERE batch_id = ? ORDER BY destination`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OutcomeRecord
	for rows.Next() {
		var o outcomeDBO
		if err := rows.Scan(&o.BatchID, &o.SourceID, &o.Address, &o.Destination, &o.Status, &o.Bytes,
			&o.Attempts, &o.Class, &o.StatusCode, &o.Error, &o.DurationNS); err != nil {
			return nil, err
		}
		out = append(out, o.ToDomain())
	}
	return out, rows.Err()
}
