package logging

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"quercus/errors"
)

// LogLevel represents the severity level of a log entry
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel reads a level name from configuration; unknown names mean info
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warning", "warn":
		return LevelWarning
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// LevelForSeverity maps a diagnostic severity onto a log level
func LevelForSeverity(s errors.ErrorSeverity) LogLevel {
	switch s {
	case errors.SeverityDebug:
		return LevelDebug
	case errors.SeverityInfo:
		return LevelInfo
	case errors.SeverityWarning:
		return LevelWarning
	case errors.SeverityError:
		return LevelError
	}
	return LevelFatal
}

// LogField represents a key-value pair for structured logging
type LogField struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	Error     error                  `json:"error,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Component string                 `json:"component,omitempty"`
	// Feature is the feature context the entry was produced under
	Feature string `json:"feature,omitempty"`
}

// Logger defines the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...LogField)
	Info(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)

	// ErrorExecution logs an execution error with its code, location and feature context
	ErrorExecution(err error, fields ...LogField)

	// Fatal logs a fatal message and exits the program
	Fatal(msg string, fields ...LogField)

	WithFields(fields ...LogField) Logger
	WithError(err error) Logger
	// WithContext picks up the request id stored under errors.RequestIDKey
	WithContext(ctx context.Context) Logger
	WithComponent(component string) Logger
	WithFeature(feature string) Logger
	WithRequest(requestID string) Logger

	SetLevel(level LogLevel)
	GetLevel() LogLevel
	IsEnabled(level LogLevel) bool
}

// Formatter defines the interface for log formatting
type Formatter interface {
	Format(entry *LogEntry) ([]byte, error)
	GetName() string
}

// Writer defines the interface for log output
type Writer interface {
	Write(data []byte) error
	Flush() error
	Close() error
	GetName() string
}

// LoggerConfig contains configuration for the logger
type LoggerConfig struct {
	Level      LogLevel
	Formatter  Formatter
	Writers    []Writer
	CallerSkip int
}

// DefaultLogger is the default implementation of Logger. Derived loggers
// share the level, formatter and writers of their parent.
type DefaultLogger struct {
	shared     *loggerCore
	fields     map[string]interface{}
	err        error
	component  string
	feature    string
	requestID  string
	callerSkip int
}

type loggerCore struct {
	mu        sync.Mutex
	level     LogLevel
	formatter Formatter
	writers   []Writer
}

// NewDefaultLogger creates an info level logger writing text to stderr
func NewDefaultLogger() *DefaultLogger {
	return NewDefaultLoggerWithConfig(LoggerConfig{Level: LevelInfo})
}

// NewDefaultLoggerWithConfig creates a logger from configuration
func NewDefaultLoggerWithConfig(config LoggerConfig) *DefaultLogger {
	core := &loggerCore{
		level:     config.Level,
		formatter: config.Formatter,
		writers:   config.Writers,
	}
	if core.formatter == nil {
		core.formatter = NewTextFormatter()
	}
	if core.writers == nil {
		core.writers = []Writer{NewConsoleWriter()}
	}
	skip := config.CallerSkip
	if skip == 0 {
		skip = 3
	}
	return &DefaultLogger{shared: core, fields: map[string]interface{}{}, callerSkip: skip}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *DefaultLogger {
	return NewDefaultLoggerWithConfig(LoggerConfig{Level: LevelFatal + 1, Writers: []Writer{NewNullWriter()}})
}

func (l *DefaultLogger) Debug(msg string, fields ...LogField) { l.log(LevelDebug, msg, fields) }
func (l *DefaultLogger) Info(msg string, fields ...LogField)  { l.log(LevelInfo, msg, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...LogField)  { l.log(LevelWarning, msg, fields) }
func (l *DefaultLogger) Error(msg string, fields ...LogField) { l.log(LevelError, msg, fields) }

// ErrorExecution logs err at the level of its severity
func (l *DefaultLogger) ErrorExecution(err error, fields ...LogField) {
	execErr, ok := errors.AsExecutionError(err)
	if !ok {
		l.log(LevelError, err.Error(), append(fields, ErrorField("error", err)))
		return
	}
	fields = append(fields,
		StringField("error_code", execErr.Code),
		StringField("error_type", string(execErr.Type)))
	if execErr.Location.IsValid() {
		fields = append(fields, StringField("location", execErr.Location.String()))
	}
	target := l
	if execErr.Feature != "" {
		target = l.copy()
		target.feature = execErr.Feature
	}
	target.log(LevelForSeverity(execErr.Severity), execErr.Message, fields)
}

// Fatal logs a fatal message and exits the program
func (l *DefaultLogger) Fatal(msg string, fields ...LogField) {
	l.log(LevelFatal, msg, fields)
	l.flush()
	os.Exit(1)
}

func (l *DefaultLogger) WithFields(fields ...LogField) Logger {
	c := l.copy()
	for _, f := range fields {
		c.fields[f.Key] = f.Value
	}
	return c
}

func (l *DefaultLogger) WithError(err error) Logger {
	c := l.copy()
	c.err = err
	return c
}

func (l *DefaultLogger) WithContext(ctx context.Context) Logger {
	c := l.copy()
	if ctx != nil {
		if id := ctx.Value(errors.RequestIDKey); id != nil {
			c.requestID = fmt.Sprint(id)
		}
	}
	return c
}

func (l *DefaultLogger) WithComponent(component string) Logger {
	c := l.copy()
	c.component = component
	return c
}

func (l *DefaultLogger) WithFeature(feature string) Logger {
	c := l.copy()
	c.feature = feature
	return c
}

func (l *DefaultLogger) WithRequest(requestID string) Logger {
	c := l.copy()
	c.requestID = requestID
	return c
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.shared.mu.Lock()
	l.shared.level = level
	l.shared.mu.Unlock()
}

func (l *DefaultLogger) GetLevel() LogLevel {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	return l.shared.level
}

// IsEnabled reports whether entries at level are written; callers use it to
// skip building expensive fields
func (l *DefaultLogger) IsEnabled(level LogLevel) bool {
	return level >= l.GetLevel()
}

func (l *DefaultLogger) log(level LogLevel, msg string, fields []LogField) {
	if !l.IsEnabled(level) {
		return
	}
	entry := &LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
		Caller:    l.caller(),
		Error:     l.err,
		RequestID: l.requestID,
		Component: l.component,
		Feature:   l.feature,
	}
	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for _, f := range fields {
		entry.Fields[f.Key] = f.Value
	}

	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	data, err := l.shared.formatter.Format(entry)
	if err != nil {
		data = []byte(fmt.Sprintf("failed to format log entry: %v - original message: %s\n", err, msg))
	}
	for _, w := range l.shared.writers {
		if err := w.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write log: %v\n", err)
		}
	}
}

func (l *DefaultLogger) flush() {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	for _, w := range l.shared.writers {
		if err := w.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush log writer: %v\n", err)
		}
	}
}

// Close flushes and closes every writer
func (l *DefaultLogger) Close() error {
	l.flush()
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	var first error
	for _, w := range l.shared.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (l *DefaultLogger) copy() *DefaultLogger {
	c := *l
	c.fields = make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		c.fields[k] = v
	}
	return &c
}

func (l *DefaultLogger) caller() string {
	_, file, line, ok := runtime.Caller(l.callerSkip)
	if !ok {
		return ""
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

// Field creates a new field
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// StringField creates a new string field
func StringField(key, value string) LogField {
	return LogField{Key: key, Value: value}
}

// IntField creates a new int field
func IntField(key string, value int) LogField {
	return LogField{Key: key, Value: value}
}

// BoolField creates a new bool field
func BoolField(key string, value bool) LogField {
	return LogField{Key: key, Value: value}
}

// ErrorField creates a new error field
func ErrorField(key string, value error) LogField {
	return LogField{Key: key, Value: value.Error()}
}

// DurationField creates a new duration field
func DurationField(key string, value time.Duration) LogField {
	return LogField{Key: key, Value: value.String()}
}
