// Package diag carries per-job diagnostic events from the retrieval engine
// to whatever wants them: the log file, a Delft-FEWS diagnostics document,
// the run history.
package diag

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel maps a config string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Event struct {
	Time     time.Time
	SourceID string
	Level    Level
	Message  string
}

// Sink receives events. Implementations must be safe for concurrent use,
// workers emit from their own goroutines.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type multi []Sink

func (m multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans an event out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Emitter stamps events for one source before handing them to a Sink.
type Emitter struct {
	Sink     Sink
	SourceID string
	Now      func() time.Time
}

func (e Emitter) emit(lvl Level, format string, v ...any) {
	if e.Sink == nil {
		return
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	e.Sink.Emit(Event{
		Time:     now(),
		SourceID: e.SourceID,
		Level:    lvl,
		Message:  fmt.Sprintf(format, v...),
	})
}

func (e Emitter) Debug(f string, v ...any) { e.emit(LevelDebug, f, v...) }
func (e Emitter) Info(f string, v ...any)  { e.emit(LevelInfo, f, v...) }
func (e Emitter) Warn(f string, v ...any)  { e.emit(LevelWarning, f, v...) }
func (e Emitter) Error(f string, v ...any) { e.emit(LevelError, f, v...) }

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of what has been recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the recorded events at the given level.
func (r *Recorder) Filter(lvl Level) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Level == lvl {
			out = append(out, e)
		}
	}
	return out
}
