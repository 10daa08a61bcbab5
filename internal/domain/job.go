package domain

import (
	"fmt"
	"path/filepath"
)

// Credentials are attached to a request as HTTP basic auth.
type Credentials struct {
	Username string
	Password string
}

// Job is a single retrieval: fetch Address and materialise it at Destination.
// Jobs are built by a source builder and never mutated afterwards.
type Job struct {
	SourceID    string
	Address     string
	Destination string
	Credentials *Credentials
}

// NewJob builds a Job writing into dir/filename.
func NewJob(sourceID, address, dir, filename string) Job {
	return Job{
		SourceID:    sourceID,
		Address:     address,
		Destination: filepath.Join(dir, filename),
	}
}

// WithCredentials returns a copy of the job carrying basic auth credentials.
// Empty usernames leave the job anonymous.
func (j Job) WithCredentials(username, password string) Job {
	if username == "" {
		return j
	}
	j.Credentials = &Credentials{Username: username, Password: password}
	return j
}

// PartPath is where the worker streams the body before renaming it into place.
func (j Job) PartPath() string {
	return j.Destination + ".part"
}

func (j Job) String() string {
	return fmt.Sprintf("%s [%s -> %s]", j.SourceID, j.Address, j.Destination)
}
