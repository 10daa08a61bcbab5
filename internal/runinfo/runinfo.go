// Package runinfo reads the run information file Delft-FEWS hands to a
// module adapter: the run period, working directory, diagnostics file and
// free-form properties.
package runinfo

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

type RunInfo struct {
	Start           time.Time
	End             time.Time
	WorkDir         string
	DiagnosticFiles []string
	Properties      map[string]string
}

type piDateTime struct {
	Date string `xml:"date,attr"`
	Time string `xml:"time,attr"`
}

type piProperty struct {
	Key   string `xml:"key,attr"`
	Value string `xml:"value,attr"`
}

type piRun struct {
	XMLName         xml.Name     `xml:"Run"`
	StartDateTime   *piDateTime  `xml:"startDateTime"`
	EndDateTime     *piDateTime  `xml:"endDateTime"`
	WorkDir         string       `xml:"workDir"`
	DiagnosticFiles []string     `xml:"outputDiagnosticFile"`
	Properties      []piProperty `xml:"properties>string"`
	IntProperties   []piProperty `xml:"properties>int"`
}

// Load parses the run info file at path.
func Load(path string) (*RunInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open run info file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*RunInfo, error) {
	var run piRun
	if err := xml.NewDecoder(r).Decode(&run); err != nil {
		return nil, fmt.Errorf("could not decode run info: %w", err)
	}

	info := &RunInfo{
		WorkDir:         strings.TrimSpace(run.WorkDir),
		DiagnosticFiles: run.DiagnosticFiles,
		Properties:      make(map[string]string),
	}

	var err error
	if run.StartDateTime != nil {
		if info.Start, err = run.StartDateTime.parse(); err != nil {
			return nil, fmt.Errorf("startDateTime: %w", err)
		}
	}
	if run.EndDateTime != nil {
		if info.End, err = run.EndDateTime.parse(); err != nil {
			return nil, fmt.Errorf("endDateTime: %w", err)
		}
	}

	for _, p := range append(run.Properties, run.IntProperties...) {
		info.Properties[p.Key] = p.Value
	}
	return info, nil
}

func (d piDateTime) parse() (time.Time, error) {
	// test runners write milliseconds into the time attribute
	clock, _, _ := strings.Cut(d.Time, ".")
	return time.ParseInLocation("2006-01-0215:04:05", d.Date+clock, time.UTC)
}

// Property returns the value for key and whether it was present.
func (r *RunInfo) Property(key string) (string, bool) {
	v, ok := r.Properties[key]
	return v, ok
}

// DestinationDir is where FEWS expects the imported files.
func (r *RunInfo) DestinationDir() string {
	return r.Properties["destinationDir"]
}

// DiagnosticFile is the first diagnostics path, or "".
func (r *RunInfo) DiagnosticFile() string {
	if len(r.DiagnosticFiles) == 0 {
		return ""
	}
	return strings.TrimSpace(r.DiagnosticFiles[0])
}
