// Package logx provides the leveled, component-tagged logger used across the agent.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	std     = log.New(os.Stderr, "", log.LstdFlags)
	verbose atomic.Bool
)

func init() { //nolint:gochecknoinits // env driven debug toggle
	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		verbose.Store(true)
	}
}

// SetVerbose enables or disables debug lines.
func SetVerbose(v bool) {
	verbose.Store(v)
}

func IsVerbose() bool {
	return verbose.Load()
}

// SetOutput redirects every logger.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Logger tags each line with a component name. A nil *Logger discards everything.
type Logger struct {
	component string
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Debug(format string, args ...any) {
	if !verbose.Load() {
		return
	}
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, format, args...)
}

func (l *Logger) log(level Level, format string, args ...any) {
	if l == nil {
		return
	}
	std.Printf("[%s] [%s] %s", level, l.component, fmt.Sprintf(format, args...))
}
