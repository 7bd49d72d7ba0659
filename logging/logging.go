/*
NAME
  logging.go

DESCRIPTION
  logging.go implements the Logger codec2 and its workers write
  diagnostics through: a leveled, lumberjack-backed rotating file sink
  matching the Logger contract the rest of the AusOcean stack expects.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package logging provides a small leveled logger, typically backed by a
// lumberjack-rotated file, that codec2's wrapper, workers and CLIs log
// through.
package logging

import (
	"fmt"
	"io"
	"log"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a log severity, ordered least to most severe.
type Level int8

const (
	Debug Level = iota
	Info
	Warning
	Error
	Fatal
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger is the interface codec2 components log through. It matches the
// shape used elsewhere in the AusOcean stack so call sites read the
// same way regardless of which concrete sink backs them.
type Logger interface {
	SetLevel(Level)
	Log(level Level, message string, params ...interface{})
}

// FileLogger writes leveled, key/value-annotated log lines to an
// io.Writer, typically a *lumberjack.Logger for size/age-based rotation.
type FileLogger struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}

// New constructs a FileLogger at the given minimum level, writing to w.
func New(level Level, w io.Writer) *FileLogger {
	return &FileLogger{level: level, out: w}
}

// NewRotatingFile constructs a FileLogger backed by a lumberjack rotating
// file sink at path, rotating at maxSizeMB megabytes and retaining
// maxBackups old files.
func NewRotatingFile(level Level, path string, maxSizeMB, maxBackups, maxAgeDays int) *FileLogger {
	return New(level, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	})
}

// SetLevel implements Logger.
func (l *FileLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Log implements Logger. params are logged as alternating key/value
// pairs, e.g. Log(Error, "submit failed", "job", id, "err", err).
func (l *FileLogger) Log(level Level, message string, params ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	line := fmt.Sprintf("%s %s", level, message)
	for i := 0; i+1 < len(params); i += 2 {
		line += fmt.Sprintf(" %v=%v", params[i], params[i+1])
	}
	fmt.Fprintln(l.out, line)

	if level == Fatal {
		log.Fatal(line)
	}
}

// Debug logs at Debug level.
func (l *FileLogger) Debug(message string, params ...interface{}) { l.Log(Debug, message, params...) }

// Info logs at Info level.
func (l *FileLogger) Info(message string, params ...interface{}) { l.Log(Info, message, params...) }

// Warning logs at Warning level.
func (l *FileLogger) Warning(message string, params ...interface{}) { l.Log(Warning, message, params...) }

// Error logs at Error level.
func (l *FileLogger) Error(message string, params ...interface{}) { l.Log(Error, message, params...) }
