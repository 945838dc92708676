package log

import (
	"fmt"
	"strings"
)

type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

const colorReset = "\033[0m"

var levels = [...]struct {
	name  string
	color string
}{
	Debug: {"DEBUG", "\033[36m"},
	Info:  {"INFO", "\033[32m"},
	Warn:  {"WARN", "\033[33m"},
	Error: {"ERROR", "\033[31m"},
	Fatal: {"FATAL", "\033[35m"},
}

func (l LogLevel) valid() bool {
	return l >= Debug && l <= Fatal
}

func (l LogLevel) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levels[l].name
}

func (l LogLevel) color() string {
	if !l.valid() {
		return colorReset
	}
	return levels[l].color
}

// ParseLevel converts a configured level name. An empty name means Info.
func ParseLevel(level string) (LogLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(level))
	switch name {
	case "":
		return Info, nil
	case "WARNING":
		return Warn, nil
	}

	for l, def := range levels {
		if def.name == name {
			return LogLevel(l), nil
		}
	}
	return Info, fmt.Errorf("invalid log level '%s'", level)
}
