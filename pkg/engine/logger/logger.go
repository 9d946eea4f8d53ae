// Tankobon: a manga library, reader backend and downloader.
// Copyright (C) 2025 Luca M. Schmidt (LuMiSxh)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger interface for logging operations
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	SetLevel(level Level)
}

// ParseLevel maps a settings value to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Service implements Logger on top of zerolog. It always writes JSON lines
// to its log file and mirrors to stderr in console format when enabled.
type Service struct {
	mu      sync.Mutex
	level   Level
	logFile string
	file    *os.File
	console bool
	zl      zerolog.Logger
}

// NewService creates a logger writing to logFile. An empty path or an
// unwritable location discards file output.
func NewService(logFile string) *Service {
	s := &Service{level: LevelInfo, logFile: logFile}
	s.rebuild()
	return s
}

// SetConsoleOutput toggles the human readable stderr mirror
func (s *Service) SetConsoleOutput(enabled bool) {
	s.mu.Lock()
	s.console = enabled
	s.mu.Unlock()
	s.rebuild()
}

func (s *Service) rebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writers []io.Writer
	if s.logFile != "" && s.file == nil {
		if err := os.MkdirAll(filepath.Dir(s.logFile), 0755); err == nil {
			if file, err := os.OpenFile(s.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
				s.file = file
			}
		}
	}
	if s.file != nil {
		writers = append(writers, s.file)
	}
	if s.console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.TimeOnly,
		})
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 1:
		out = writers[0]
	case 0:
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	s.zl = zerolog.New(out).
		Level(s.level.zerolog()).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}

// SetLevel sets the minimum log level
func (s *Service) SetLevel(level Level) {
	s.mu.Lock()
	s.level = level
	s.zl = s.zl.Level(level.zerolog())
	s.mu.Unlock()
}

// Close closes the log file if open
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.zl = zerolog.Nop()
	return err
}

// LogFile returns the path to the log file
func (s *Service) LogFile() string {
	return s.logFile
}

func (s *Service) Debug(format string, args ...interface{}) {
	s.log(LevelDebug, format, args...)
}

func (s *Service) Info(format string, args ...interface{}) {
	s.log(LevelInfo, format, args...)
}

func (s *Service) Warn(format string, args ...interface{}) {
	s.log(LevelWarn, format, args...)
}

func (s *Service) Error(format string, args ...interface{}) {
	s.log(LevelError, format, args...)
}

func (s *Service) log(level Level, format string, args ...interface{}) {
	s.mu.Lock()
	zl := s.zl
	s.mu.Unlock()

	zl.WithLevel(level.zerolog()).Msgf(format, args...)
}

// nop discards everything
type nop struct{}

// Nop returns a Logger that drops every message
func Nop() Logger { return nop{} }

func (nop) Debug(string, ...interface{}) {}
func (nop) Info(string, ...interface{})  {}
func (nop) Warn(string, ...interface{})  {}
func (nop) Error(string, ...interface{}) {}
func (nop) SetLevel(Level)               {}
