package domain

import "time"

type JobStatus string

const (
	StatusSkipped   JobStatus = "skipped"   // destination already present
	StatusSucceeded JobStatus = "succeeded" // bytes landed at the destination
	StatusEmpty     JobStatus = "empty"     // the source answered but had no data
	StatusFailed    JobStatus = "failed"
)

// FailureClass tells apart the ways a retrieval can fail.
type FailureClass string

const (
	ClassNone       FailureClass = ""
	ClassConnection FailureClass = "connection"
	ClassHTTP       FailureClass = "http"
	ClassIO         FailureClass = "io"
	ClassOther      FailureClass = "other"
)

// Outcome is the terminal result of one Job.
type Outcome struct {
	Job        Job
	Status     JobStatus
	Bytes      int64
	Attempts   int
	Class      FailureClass
	StatusCode int
	Err        error
	Duration   time.Duration
}

// HasData reports whether the job left usable data on disk.
func (o Outcome) HasData() bool {
	return o.Status == StatusSucceeded || o.Status == StatusSkipped
}

// ErrorString is the failure message, or "" when the job did not fail.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Summary counts outcomes per status.
type Summary struct {
	Jobs      int   `json:"jobs"`
	Succeeded int   `json:"succeeded"`
	Skipped   int   `json:"skipped"`
	Empty     int   `json:"empty"`
	Failed    int   `json:"failed"`
	Bytes     int64 `json:"bytes"`
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Jobs: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case StatusSucceeded:
			s.Succeeded++
			s.Bytes += o.Bytes
		case StatusSkipped:
			s.Skipped++
		case StatusEmpty:
			s.Empty++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
