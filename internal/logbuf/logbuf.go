// Package logbuf is the process-wide diagnostic log for storage operations:
// an append-only, capped in-memory buffer of entries, mirrored to a console
// sink (slog) and optionally to a persistent JSON-lines file. It owns no
// card data; both storage adapters trace through it.
package logbuf

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is the entry severity.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelMetric
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelMetric:
		return "metric"
	default:
		return fmt.Sprintf("level(%d)", int8(l))
	}
}

// ParseLevel maps a level name back to its Level.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "metric":
		return LevelMetric, true
	default:
		return 0, false
	}
}

// Levels travel as their names in JSON so exported diagnostics stay readable.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	level, ok := ParseLevel(s)
	if !ok {
		return fmt.Errorf("unknown log level %q", s)
	}
	*l = level
	return nil
}

// Entry is one log record. Stack is only set on error entries built from an
// error value.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   Level          `json:"level"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Context string         `json:"context,omitempty"`
	Stack   string         `json:"stack,omitempty"`
}

// Options configures a Log. The zero value is usable: 1000 buffered
// entries, console mirror to stderr, no persistent mirror.
type Options struct {
	// MaxEntries caps the in-memory buffer; oldest entries drop first.
	MaxEntries int
	// MirrorPath enables the persistent JSON-lines mirror, capped
	// independently (and smaller) by size-based rotation.
	MirrorPath string
	// MirrorMaxSizeMB caps the persistent mirror before rotation.
	MirrorMaxSizeMB int
	// MinLevel drops entries below this severity. Metric entries always
	// pass.
	MinLevel Level
	// Console overrides the console sink; nil means a text handler on
	// stderr.
	Console *slog.Logger
}

const (
	defaultMaxEntries = 1000
	defaultMirrorMB   = 1
)

// Log is the buffer plus its mirrors. Safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	opts    Options
	entries []Entry
	mirror  io.WriteCloser
	console *slog.Logger
}

// New creates a Log with the given options.
func New(opts Options) *Log {
	l := &Log{}
	l.configure(opts)
	return l
}

// Configure replaces the log's options. The buffered entries are kept but
// re-capped; an existing persistent mirror is closed if the path changed.
func (l *Log) Configure(opts Options) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.configure(opts)
}

func (l *Log) configure(opts Options) {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.MirrorMaxSizeMB <= 0 {
		opts.MirrorMaxSizeMB = defaultMirrorMB
	}
	if opts.Console == nil {
		opts.Console = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if l.mirror != nil && l.opts.MirrorPath != opts.MirrorPath {
		_ = l.mirror.Close()
		l.mirror = nil
	}
	if opts.MirrorPath != "" && l.mirror == nil {
		l.mirror = &lumberjack.Logger{
			Filename:   opts.MirrorPath,
			MaxSize:    opts.MirrorMaxSizeMB,
			MaxBackups: 1,
		}
	}

	l.opts = opts
	l.console = opts.Console
	if len(l.entries) > opts.MaxEntries {
		l.entries = append([]Entry(nil), l.entries[len(l.entries)-opts.MaxEntries:]...)
	}
}

// For returns a handle that labels every entry with the given context,
// typically an adapter or component name.
func (l *Log) For(context string) *Scoped {
	return &Scoped{log: l, context: context}
}

func (l *Log) Debug(msg string, data map[string]any) { l.append(LevelDebug, msg, data, "", nil) }
func (l *Log) Info(msg string, data map[string]any)  { l.append(LevelInfo, msg, data, "", nil) }
func (l *Log) Warn(msg string, data map[string]any)  { l.append(LevelWarn, msg, data, "", nil) }

// Error records an error-severity entry. If err is non-nil its message is
// attached and a stack trace captured.
func (l *Log) Error(msg string, err error, data map[string]any) {
	l.append(LevelError, msg, data, "", err)
}

// Metric records a named measurement.
func (l *Log) Metric(name string, data map[string]any) {
	l.append(LevelMetric, name, data, "", nil)
}

func (l *Log) append(level Level, msg string, data map[string]any, context string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.opts.MinLevel && level != LevelMetric {
		return
	}

	e := Entry{
		Time:    time.Now().UTC(),
		Level:   level,
		Message: msg,
		Data:    data,
		Context: context,
	}
	if err != nil {
		if e.Data == nil {
			e.Data = map[string]any{}
		}
		e.Data["error"] = err.Error()
		if level == LevelError {
			buf := make([]byte, 4096)
			e.Stack = string(buf[:runtime.Stack(buf, false)])
		}
	}

	l.entries = append(l.entries, e)
	if len(l.entries) > l.opts.MaxEntries {
		l.entries = l.entries[len(l.entries)-l.opts.MaxEntries:]
	}

	l.toConsole(e)
	l.toMirror(e)
}

func (l *Log) toConsole(e Entry) {
	args := make([]any, 0, 2*len(e.Data)+4)
	if e.Context != "" {
		args = append(args, "context", e.Context)
	}
	for k, v := range e.Data {
		args = append(args, k, v)
	}
	switch e.Level {
	case LevelDebug:
		l.console.Debug(e.Message, args...)
	case LevelWarn:
		l.console.Warn(e.Message, args...)
	case LevelError:
		l.console.Error(e.Message, args...)
	case LevelMetric:
		l.console.Info(e.Message, append(args, "metric", true)...)
	default:
		l.console.Info(e.Message, args...)
	}
}

func (l *Log) toMirror(e Entry) {
	if l.mirror == nil {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		return
	}
	_, _ = l.mirror.Write(append(line, '\n'))
}

// Filter selects entries for Query. Zero fields match everything.
type Filter struct {
	Level   *Level
	Context string
	Limit   int
}

// Query returns buffered entries matching f, oldest first. Limit keeps the
// most recent matches.
func (l *Log) Query(f Filter) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if f.Level != nil && e.Level != *f.Level {
			continue
		}
		if f.Context != "" && e.Context != f.Context {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

// Len reports the number of buffered entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops all buffered entries. Mirrors are untouched.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Export returns the buffered entries as a JSON document.
func (l *Log) Export() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return json.MarshalIndent(l.entries, "", "  ")
}

// Close releases the persistent mirror, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.mirror == nil {
		return nil
	}
	err := l.mirror.Close()
	l.mirror = nil
	return err
}

// Scoped is a Log handle bound to a context label.
type Scoped struct {
	log     *Log
	context string
}

func (s *Scoped) Debug(msg string, data map[string]any) {
	s.log.append(LevelDebug, msg, data, s.context, nil)
}

func (s *Scoped) Info(msg string, data map[string]any) {
	s.log.append(LevelInfo, msg, data, s.context, nil)
}

func (s *Scoped) Warn(msg string, data map[string]any) {
	s.log.append(LevelWarn, msg, data, s.context, nil)
}

func (s *Scoped) Error(msg string, err error, data map[string]any) {
	s.log.append(LevelError, msg, data, s.context, err)
}

func (s *Scoped) Metric(name string, data map[string]any) {
	s.log.append(LevelMetric, name, data, s.context, nil)
}

// Timed runs fn and emits a metric entry with its duration on success, or an
// error entry with the elapsed time on failure. The original error is
// returned either way.
func (s *Scoped) Timed(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		s.Error(name+" failed", err, map[string]any{"elapsed_ms": elapsed.Milliseconds()})
		return err
	}
	s.Metric(name, map[string]any{"duration_ms": elapsed.Milliseconds()})
	return nil
}
