package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/datallboy/hydrofetch/internal/diag"
)

const timeLayout = "2006-01-02 15:04:05"

// Logger writes "time - name - LEVEL - message" lines to a file and,
// optionally, stdout. It also acts as a diag.Sink for engine events.
type Logger struct {
	mu            sync.Mutex
	fileLogger    *log.Logger
	closer        io.Closer
	stdout        io.Writer
	name          string
	level         diag.Level
	includeStdout bool
}

// New opens filePath for appending.
func New(filePath, name string, level diag.Level, includeStdout bool) (*Logger, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := NewWriter(f, name, level, includeStdout)
	l.closer = f
	return l, nil
}

// NewWriter logs to w instead of a file.
func NewWriter(w io.Writer, name string, level diag.Level, includeStdout bool) *Logger {
	return &Logger{
		fileLogger:    log.New(w, "", 0),
		stdout:        os.Stdout,
		name:          name,
		level:         level,
		includeStdout: includeStdout,
	}
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) write(at time.Time, name string, lvl diag.Level, msg string) {
	if lvl < l.level {
		return
	}
	if name == "" {
		name = l.name
	}

	fullMsg := fmt.Sprintf("%s - %s - %s - %s", at.Format(timeLayout), name, lvl, msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.fileLogger.Println(fullMsg)

	// Debug stays in the file so the console remains readable
	if l.includeStdout && lvl >= diag.LevelInfo {
		fmt.Fprintln(l.stdout, fullMsg)
	}
}

func (l *Logger) log(lvl diag.Level, format string, v ...any) {
	l.write(time.Now(), "", lvl, fmt.Sprintf(format, v...))
}

// Emit implements diag.Sink.
func (l *Logger) Emit(e diag.Event) {
	l.write(e.Time, e.SourceID, e.Level, e.Message)
}

func (l *Logger) Debug(f string, v ...any) { l.log(diag.LevelDebug, f, v...) }
func (l *Logger) Info(f string, v ...any)  { l.log(diag.LevelInfo, f, v...) }
func (l *Logger) Warn(f string, v ...any)  { l.log(diag.LevelWarning, f, v...) }
func (l *Logger) Error(f string, v ...any) { l.log(diag.LevelError, f, v...) }

func (l *Logger) Write(p []byte) (n int, err error) {
	// echo and other libraries include a trailing newline
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.Info("%s", msg)
	}
	return len(p), nil
}
