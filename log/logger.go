package log

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/natefinch/lumberjack.v2"
)

const timeFormat = "2006-01-02 15:04:05"

// Logger writes levelled printf-style messages. Children created through
// Named and With share the output of their parent.
type Logger struct {
	out    *output
	name   string
	level  LogLevel
	fields []field
}

type field struct {
	key   string
	value any
}

// output serialises writes from concurrent listings and streams.
type output struct {
	mu    sync.Mutex
	w     io.Writer
	file  *lumberjack.Logger
	color bool
	json  bool
	exit  func(int)
}

type config struct {
	writer   io.Writer
	terminal bool
	json     bool
	file     string
	rotation Rotation
}

// Rotation controls the lumberjack file sink. Sizes are in megabytes, ages in days.
type Rotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type LoggerOption func(*config)

// WithFile additionally writes to a rotated log file.
func WithFile(file string) LoggerOption {
	return func(c *config) {
		c.file = file
	}
}

// WithRotation overrides the default rotation of the file sink.
func WithRotation(r Rotation) LoggerOption {
	return func(c *config) {
		c.rotation = r
	}
}

// WithWriter replaces the terminal output, mostly used by tests.
func WithWriter(w io.Writer) LoggerOption {
	return func(c *config) {
		c.writer = w
	}
}

func WithJSON() LoggerOption {
	return func(c *config) {
		c.json = true
	}
}

func WithoutTerminal() LoggerOption {
	return func(c *config) {
		c.terminal = false
	}
}

func NewLogger(name string, level LogLevel, opts ...LoggerOption) *Logger {
	c := &config{
		terminal: true,
		rotation: Rotation{MaxSize: 128, MaxBackups: 5, MaxAge: 16},
	}
	for _, opt := range opts {
		opt(c)
	}

	out := &output{json: c.json, exit: os.Exit}
	var writers []io.Writer
	switch {
	case c.writer != nil:
		writers = append(writers, c.writer)
	case c.terminal:
		writers = append(writers, os.Stdout)
		out.color = !c.json
	}

	if c.file != "" {
		out.file = &lumberjack.Logger{
			Filename:   c.file,
			MaxSize:    c.rotation.MaxSize,
			MaxBackups: c.rotation.MaxBackups,
			MaxAge:     c.rotation.MaxAge,
			Compress:   c.rotation.Compress,
		}
		writers = append(writers, out.file)
		// Escape codes would end up in the file
		out.color = false
	}

	switch len(writers) {
	case 0:
		out.w = io.Discard
	case 1:
		out.w = writers[0]
	default:
		out.w = io.MultiWriter(writers...)
	}

	return &Logger{out: out, name: name, level: level}
}

// Discard returns a logger that drops every message.
func Discard() *Logger {
	return NewLogger("", Fatal+1, WithWriter(io.Discard))
}

// Named returns a child logger sharing the output, named "parent/child".
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}

	child := *l
	if l.name != "" {
		child.name = l.name + "/" + name
	} else {
		child.name = name
	}
	return &child
}

// With returns a child logger that appends key=value to every message.
func (l *Logger) With(key string, value any) *Logger {
	if l == nil {
		return nil
	}

	child := *l
	child.fields = append(slices.Clip(l.fields), field{key: key, value: value})
	return &child
}

// Name returns the full name of the logger.
func (l *Logger) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level LogLevel) bool {
	return l != nil && level >= l.level
}

// Close releases the rotated log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.out.file == nil {
		return nil
	}
	return l.out.file.Close()
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	timestamp := time.Now().Format(timeFormat)
	message := fmt.Sprintf(msg, args...)

	var line []byte
	if l.out.json {
		line = l.jsonLine(timestamp, level, message)
	} else {
		line = l.textLine(timestamp, level, message)
	}

	l.out.mu.Lock()
	l.out.w.Write(line)
	l.out.mu.Unlock()

	if level == Fatal {
		l.out.exit(1)
	}
}

type logEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Service   string         `json:"service,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func (l *Logger) jsonLine(timestamp string, level LogLevel, message string) []byte {
	entry := logEntry{
		Timestamp: timestamp,
		Level:     level.String(),
		Service:   l.name,
		Message:   message,
	}
	if len(l.fields) > 0 {
		entry.Fields = make(map[string]any, len(l.fields))
		for _, f := range l.fields {
			entry.Fields[f.key] = f.value
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		line, _ = json.Marshal(logEntry{Timestamp: timestamp, Level: level.String(), Service: l.name, Message: message})
	}
	return append(line, '\n')
}

func (l *Logger) textLine(timestamp string, level LogLevel, message string) []byte {
	var sb strings.Builder
	if l.out.color {
		sb.WriteString(level.color())
	}

	fmt.Fprintf(&sb, "[%s] %-5s", timestamp, level)
	if l.name != "" {
		fmt.Fprintf(&sb, " [%s]", l.name)
	}
	sb.WriteByte(' ')
	sb.WriteString(message)
	for _, f := range l.fields {
		fmt.Fprintf(&sb, " %s=%v", f.key, f.value)
	}

	if l.out.color {
		sb.WriteString(colorReset)
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

// Fatal logs and terminates the process.
func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}
