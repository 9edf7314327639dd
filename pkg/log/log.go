// Package log provides categorised, structured logging for nudb.
//
// Four categories can be tuned independently:
//   - System: CLI lifecycle and configuration
//   - Storage: opening, promoting, deserializing and backing up databases
//   - Query: statement preparation, execution and row iteration
//   - Value: lazy value navigation and materialization
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Level is a logging severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "OFF"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel accepts the level names case-insensitively, plus the aliases
// "warning", "err" and "none".
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "WARNING":
		return LevelWarn, nil
	case "ERR":
		return LevelError, nil
	case "NONE":
		return LevelOff, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// Category groups log entries by subsystem.
type Category string

const (
	CategorySystem  Category = "system"
	CategoryStorage Category = "storage"
	CategoryQuery   Category = "query"
	CategoryValue   Category = "value"
)

// Categories lists every category in display order.
var Categories = []Category{CategorySystem, CategoryStorage, CategoryQuery, CategoryValue}

// Format is the output encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses "text" (or empty) and "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("unknown log format: %s", s)
}

// Entry is one log record. Code is set when the logged error carries a
// nudb error code.
type Entry struct {
	Time     time.Time              `json:"time"`
	Level    string                 `json:"level"`
	Category Category               `json:"category"`
	Message  string                 `json:"message"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
	ErrorStr string                 `json:"error,omitempty"`
	Code     string                 `json:"code,omitempty"`
	Caller   string                 `json:"caller,omitempty"`
}

// Config holds logger configuration.
type Config struct {
	DefaultLevel   Level
	CategoryLevels map[Category]Level

	Output io.Writer // os.Stderr if nil
	Format Format

	IncludeCaller bool
}

// DefaultConfig logs warnings and above to stderr as text.
func DefaultConfig() Config {
	return Config{DefaultLevel: LevelWarn, Output: os.Stderr}
}

type sink struct {
	level Level
	out   io.Writer
}

// Logger writes entries to per-category sinks.
type Logger struct {
	mu    sync.RWMutex
	sinks map[Category]*sink

	format        Format
	includeCaller bool

	logged int64
}

// New creates a logger.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l := &Logger{
		sinks:         make(map[Category]*sink, len(Categories)),
		format:        cfg.Format,
		includeCaller: cfg.IncludeCaller,
	}
	for _, cat := range Categories {
		level, ok := cfg.CategoryLevels[cat]
		if !ok {
			level = cfg.DefaultLevel
		}
		l.sinks[cat] = &sink{level: level, out: out}
	}
	return l
}

// Discard returns a logger that writes nothing.
func Discard() *Logger {
	return New(Config{DefaultLevel: LevelOff, Output: io.Discard})
}

func (l *Logger) SetLevel(cat Category, level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sinks[cat]; ok {
		s.level = level
	}
}

func (l *Logger) SetOutput(cat Category, w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sinks[cat]; ok {
		s.out = w
	}
}

// Enabled reports whether level is logged for cat.
func (l *Logger) Enabled(cat Category, level Level) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sinks[cat]
	return ok && s.level != LevelOff && level >= s.level
}

// Logged returns the number of entries written.
func (l *Logger) Logged() int64 {
	return atomic.LoadInt64(&l.logged)
}

func (l *Logger) System() *CategoryLogger  { return l.category(CategorySystem) }
func (l *Logger) Storage() *CategoryLogger { return l.category(CategoryStorage) }
func (l *Logger) Query() *CategoryLogger   { return l.category(CategoryQuery) }
func (l *Logger) Value() *CategoryLogger   { return l.category(CategoryValue) }

func (l *Logger) category(cat Category) *CategoryLogger {
	return &CategoryLogger{logger: l, category: cat}
}

// coder is satisfied by errors that carry a nudb error code.
type coder interface {
	error
	CodeString() string
}

func (l *Logger) write(level Level, cat Category, msg string, err error, fields []interface{}) {
	if !l.Enabled(cat, level) {
		return
	}

	entry := Entry{
		Time:     time.Now(),
		Level:    level.String(),
		Category: cat,
		Message:  msg,
		Fields:   pairs(fields),
	}
	if err != nil {
		entry.ErrorStr = err.Error()
		var c coder
		if errors.As(err, &c) {
			entry.Code = c.CodeString()
		}
	}
	if l.includeCaller {
		// write <- CategoryLogger method <- caller
		if _, file, line, ok := runtime.Caller(3); ok {
			entry.Caller = file[strings.LastIndex(file, "/")+1:] + ":" + strconv.Itoa(line)
		}
	}

	var data []byte
	if l.format == FormatJSON {
		data, _ = json.Marshal(&entry)
		data = append(data, '\n')
	} else {
		data = entry.appendText(nil)
	}

	l.mu.Lock()
	l.sinks[cat].out.Write(data)
	l.mu.Unlock()
	atomic.AddInt64(&l.logged, 1)
}

// pairs turns alternating key/value arguments into a map. Non-string keys
// and a trailing key without a value are dropped.
func pairs(kv []interface{}) map[string]interface{} {
	if len(kv) < 2 {
		return nil
	}
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			m[key] = kv[i+1]
		}
	}
	return m
}

// appendText renders the entry on one line with fields sorted by key.
// Values containing spaces or quotes are quoted.
func (e *Entry) appendText(buf []byte) []byte {
	buf = e.Time.AppendFormat(buf, "2006-01-02 15:04:05.000")
	buf = append(buf, fmt.Sprintf(" %-5s [%s] ", e.Level, e.Category)...)
	if e.Caller != "" {
		buf = append(buf, e.Caller...)
		buf = append(buf, ' ')
	}
	buf = append(buf, e.Message...)
	if e.Code != "" {
		buf = append(buf, " code="...)
		buf = append(buf, e.Code...)
	}
	if e.ErrorStr != "" {
		buf = append(buf, " error="...)
		buf = strconv.AppendQuote(buf, e.ErrorStr)
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(e.Fields[k])
		buf = append(buf, ' ')
		buf = append(buf, k...)
		buf = append(buf, '=')
		if strings.ContainsAny(v, " \"=") {
			buf = strconv.AppendQuote(buf, v)
		} else {
			buf = append(buf, v...)
		}
	}
	return append(buf, '\n')
}

// CategoryLogger logs to one category.
type CategoryLogger struct {
	logger   *Logger
	category Category
}

func (cl *CategoryLogger) Debug(msg string, fields ...interface{}) {
	cl.logger.write(LevelDebug, cl.category, msg, nil, fields)
}

func (cl *CategoryLogger) Info(msg string, fields ...interface{}) {
	cl.logger.write(LevelInfo, cl.category, msg, nil, fields)
}

func (cl *CategoryLogger) Warn(msg string, fields ...interface{}) {
	cl.logger.write(LevelWarn, cl.category, msg, nil, fields)
}

func (cl *CategoryLogger) Error(msg string, err error, fields ...interface{}) {
	cl.logger.write(LevelError, cl.category, msg, err, fields)
}

type contextKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the context's logger, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*Logger); ok {
			return l
		}
	}
	return Default()
}

var (
	defaultOnce   sync.Once
	defaultLogger atomic.Pointer[Logger]
)

// Default returns the process-wide logger, created on first use.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger.CompareAndSwap(nil, New(DefaultConfig()))
	})
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	defaultOnce.Do(func() {})
	defaultLogger.Store(l)
}
