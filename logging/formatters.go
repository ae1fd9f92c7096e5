package logging

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// JSONFormatter formats log entries as one JSON object per line
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format formats a log entry as JSON
func (f *JSONFormatter) Format(entry *LogEntry) ([]byte, error) {
	output := map[string]interface{}{
		"timestamp": entry.Timestamp.Format(time.RFC3339Nano),
		"level":     entry.Level.String(),
		"message":   entry.Message,
	}
	if entry.Caller != "" {
		output["caller"] = entry.Caller
	}
	if entry.Component != "" {
		output["component"] = entry.Component
	}
	if entry.Feature != "" {
		output["feature"] = entry.Feature
	}
	if entry.RequestID != "" {
		output["request_id"] = entry.RequestID
	}
	if entry.Error != nil {
		output["error"] = entry.Error.Error()
	}
	if len(entry.Fields) > 0 {
		output["fields"] = entry.Fields
	}

	data, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// GetName returns the name of the formatter
func (f *JSONFormatter) GetName() string {
	return "json"
}

// TextFormatter formats log entries as a single human readable line
type TextFormatter struct {
	IncludeTimestamp bool
	IncludeCaller    bool
	IncludeLevel     bool
	// ColorOutput wraps the level in ANSI color codes
	ColorOutput bool
}

// NewTextFormatter creates a new text formatter with default settings
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: true,
		IncludeCaller:    true,
		IncludeLevel:     true,
	}
}

// NewTextFormatterWithOptions creates a new text formatter with custom options
func NewTextFormatterWithOptions(includeTimestamp, includeCaller, includeLevel, colorOutput bool) *TextFormatter {
	return &TextFormatter{
		IncludeTimestamp: includeTimestamp,
		IncludeCaller:    includeCaller,
		IncludeLevel:     includeLevel,
		ColorOutput:      colorOutput,
	}
}

// Format renders "ts [LEVEL] component: message {feature} k=v ... (caller)"
func (f *TextFormatter) Format(entry *LogEntry) ([]byte, error) {
	var b strings.Builder

	if f.IncludeTimestamp {
		b.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05.000"))
		b.WriteByte(' ')
	}
	if f.IncludeLevel {
		level := entry.Level.String()
		if f.ColorOutput {
			level = colorize(entry.Level, level)
		}
		fmt.Fprintf(&b, "[%s] ", level)
	}
	if entry.Component != "" {
		b.WriteString(entry.Component)
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	if entry.Feature != "" {
		fmt.Fprintf(&b, " {%s}", entry.Feature)
	}
	if entry.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", entry.RequestID)
	}
	if entry.Error != nil {
		fmt.Fprintf(&b, " error=%q", entry.Error.Error())
	}
	writeFields(&b, entry.Fields)
	if f.IncludeCaller && entry.Caller != "" {
		fmt.Fprintf(&b, " (%s)", entry.Caller)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// GetName returns the name of the formatter
func (f *TextFormatter) GetName() string {
	return "text"
}

// SimpleFormatter prints only the level and message, for interactive use
type SimpleFormatter struct{}

// NewSimpleFormatter creates a new simple formatter
func NewSimpleFormatter() *SimpleFormatter {
	return &SimpleFormatter{}
}

// Format formats a log entry as "LEVEL: message"
func (f *SimpleFormatter) Format(entry *LogEntry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Level.String())
	b.WriteString(": ")
	b.WriteString(entry.Message)
	if entry.Feature != "" {
		fmt.Fprintf(&b, " {%s}", entry.Feature)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// GetName returns the name of the formatter
func (f *SimpleFormatter) GetName() string {
	return "simple"
}

// NewFormatter returns the formatter registered under name
func NewFormatter(name string) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return NewTextFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	case "simple":
		return NewSimpleFormatter(), nil
	case "color", "console":
		return NewTextFormatterWithOptions(true, false, true, true), nil
	}
	return nil, fmt.Errorf("unknown log format %q", name)
}

func writeFields(b *strings.Builder, fields map[string]interface{}) {
	if len(fields) == 0 {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(fields[k])
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(b, " %s=%s", k, v)
	}
}

func colorize(level LogLevel, text string) string {
	var code string
	switch level {
	case LevelDebug:
		code = "36"
	case LevelInfo:
		code = "32"
	case LevelWarning:
		code = "33"
	default:
		code = "31"
	}
	return "\x1b[" + code + "m" + text + "\x1b[0m"
}
