// Package logbook keeps the console's diagnostics log. The TUI owns the
// terminal, so transport failures, trigger results and poll errors land
// here instead of stderr, and the log panel shows the most recent lines.
package logbook

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var rank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a config value such as "warn" to a Level. Unknown values
// fall back to LevelInfo.
func ParseLevel(value string) Level {
	lvl := Level(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := rank[lvl]; ok {
		return lvl
	}
	return LevelInfo
}

// Option customizes a Logbook.
type Option func(*Logbook)

// WithLevel drops entries below min.
func WithLevel(min Level) Option {
	return func(l *Logbook) {
		if _, ok := rank[min]; ok {
			l.min = min
		}
	}
}

// WithMirror copies every written line to w, e.g. stderr for the
// non-interactive commands.
func WithMirror(w io.Writer) Option {
	return func(l *Logbook) {
		l.mirror = w
	}
}

// Logbook appends timestamped entries to a text file.
type Logbook struct {
	path   string
	min    Level
	mirror io.Writer
	now    func() time.Time
	mu     sync.Mutex
}

// New creates a logbook that writes to the provided path.
func New(path string, opts ...Option) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	l := &Logbook{path: path, min: LevelInfo, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Enabled reports whether entries at level would be written.
func (l *Logbook) Enabled(level Level) bool {
	if l == nil {
		return false
	}
	return rank[level] >= rank[l.min]
}

// Append writes a single entry to the logbook. Multi-line messages are
// folded onto one line so Tail stays line oriented.
func (l *Logbook) Append(level Level, message string) {
	if !l.Enabled(level) {
		return
	}
	message = strings.Join(strings.Fields(strings.ReplaceAll(message, "\n", " ")), " ")
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		l.now().UTC().Format(time.RFC3339),
		string(level),
		message,
	)
	if l.mirror != nil {
		_, _ = io.WriteString(l.mirror, line)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent log entries along with the
// total number of lines in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Debug appends a diagnostic entry.
func (l *Logbook) Debug(format string, args ...any) {
	l.Append(LevelDebug, fmt.Sprintf(format, args...))
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// temporary is implemented by errors that may clear up on retry.
type temporary interface {
	Temporary() bool
}

// Report logs err with a prefix. Errors that report themselves as temporary
// are logged as warnings, everything else as errors.
func (l *Logbook) Report(prefix string, err error) {
	if err == nil {
		return
	}
	var t temporary
	if errors.As(err, &t) && t.Temporary() {
		l.Warn("%s: %v", prefix, err)
		return
	}
	l.Error("%s: %v", prefix, err)
}

// Sink returns a func(error) suitable for callbacks such as a poller's error
// hook.
func (l *Logbook) Sink(prefix string) func(error) {
	return func(err error) {
		l.Report(prefix, err)
	}
}
