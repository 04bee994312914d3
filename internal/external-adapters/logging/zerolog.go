// Package logging implements the domain Logger on top of zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ochairo/distcheck/internal/domain/interfaces"
)

// LogFileName is the structured run log written inside the output directory
const LogFileName = "distcheck.log"

// Options selects the log sinks
type Options struct {
	// Console receives human-readable lines; nil disables console logging
	Console io.Writer
	// Verbose lowers the console level from warn to debug
	Verbose bool
	// File receives JSON lines at debug level; nil disables file logging
	File io.Writer
}

// Logger adapts zerolog to interfaces.Logger
type Logger struct {
	zl zerolog.Logger
}

var _ interfaces.Logger = (*Logger)(nil)

// New builds a logger writing to the configured sinks
func New(opts Options) *Logger {
	var writers []io.Writer

	if opts.Console != nil {
		level := zerolog.WarnLevel
		if opts.Verbose {
			level = zerolog.DebugLevel
		}
		console := zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.TimeOnly}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: console},
			Level:  level,
		})
	}
	if opts.File != nil {
		writers = append(writers, opts.File)
	}

	if len(writers) == 0 {
		return &Logger{zl: zerolog.Nop()}
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerolog.DebugLevel).
		With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// OpenFile creates the run log inside dir and returns it with its closer
func OpenFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	//nolint:gosec // G304: dir is the configured output directory
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Debug logs debug-level messages
func (l *Logger) Debug(msg string, fields ...interfaces.Field) {
	l.write(l.zl.Debug(), msg, fields)
}

// Info logs informational messages
func (l *Logger) Info(msg string, fields ...interfaces.Field) {
	l.write(l.zl.Info(), msg, fields)
}

// Warn logs warning messages
func (l *Logger) Warn(msg string, fields ...interfaces.Field) {
	l.write(l.zl.Warn(), msg, fields)
}

// Error logs error messages
func (l *Logger) Error(msg string, fields ...interfaces.Field) {
	l.write(l.zl.Error(), msg, fields)
}

func (l *Logger) write(event *zerolog.Event, msg string, fields []interfaces.Field) {
	if event == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case error:
			event = event.AnErr(f.Key, v)
		case time.Duration:
			event = event.Dur(f.Key, v)
		default:
			event = event.Interface(f.Key, v)
		}
	}
	event.Msg(msg)
}
