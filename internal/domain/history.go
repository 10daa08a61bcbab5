package domain

import "time"

// BatchRecord is the stored summary of one fetch run.
type BatchRecord struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source"`
	Model      string    `json:"model,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Summary    Summary   `json:"summary"`
}

// OutcomeRecord is an Outcome as it is kept in history. The error survives
// only as text.
type OutcomeRecord struct {
	BatchID     string        `json:"batch_id"`
	SourceID    string        `json:"source"`
	Address     string        `json:"address"`
	Destination string        `json:"destination"`
	Status      JobStatus     `json:"status"`
	Bytes       int64         `json:"bytes"`
	Attempts    int           `json:"attempts"`
	Class       FailureClass  `json:"class,omitempty"`
	StatusCode  int           `json:"status_code,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

func NewOutcomeRecord(batchID string, o Outcome) OutcomeRecord {
	return OutcomeRecord{
		BatchID:     batchID,
		SourceID:    o.Job.SourceID,
		Address:     o.Job.Address,
		Destination: o.Job.Destination,
		Status:      o.Status,
		Bytes:       o.Bytes,
		Attempts:    o.Attempts,
		Class:       o.Class,
		StatusCode:  o.StatusCode,
		Error:       o.ErrorString(),
		Duration:    o.Duration,
	}
}
