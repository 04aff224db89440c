// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logctx wires the subsystem loggers every core package exposes
// into one backend: a slog.Backend composed over stdout and a rotated
// log file, handing each package its own tagged Logger via UseLogger.
// It is not imported by the core packages themselves — only by
// cmd/ncnsim, which plays the role of the daemon process that owns
// process-wide logging.
package logctx

import (
	"fmt"
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Backend fans log records out to stdout and a rotated log file, and
// hands out per-subsystem Logger values tagged with a short uppercase
// tag (e.g. "ENGN", "STOR").
type Backend struct {
	backend *slog.Backend
	rotator *rotator.Rotator
	loggers map[string]slog.Logger
	level   slog.Level
}

// New creates a Backend writing to both stdout and logFile, rolling
// logFile once it exceeds maxRollKB kilobytes and keeping maxRolls
// compressed history files.
func New(logFile string, maxRollKB int64, maxRolls int) (*Backend, error) {
	r, err := rotator.New(logFile, maxRollKB, true, maxRolls)
	if err != nil {
		return nil, fmt.Errorf("logctx: failed to create log rotator: %w", err)
	}
	w := io.MultiWriter(os.Stdout, r)
	return &Backend{
		backend: slog.NewBackend(w),
		rotator: r,
		loggers: make(map[string]slog.Logger),
		level:   slog.LevelInfo,
	}, nil
}

// Logger returns the Logger for subsystemTag, creating and caching it on
// first use at the backend's current level (LevelInfo until SetLevels
// says otherwise).
func (b *Backend) Logger(subsystemTag string) slog.Logger {
	if l, ok := b.loggers[subsystemTag]; ok {
		return l
	}
	l := b.backend.Logger(subsystemTag)
	l.SetLevel(b.level)
	b.loggers[subsystemTag] = l
	return l
}

// SetLevels parses levelSpec ("info", "debug", "trace", ...) and applies
// it to every Logger created through this Backend, past and future.
func (b *Backend) SetLevels(levelSpec string) error {
	level, ok := slog.LevelFromString(levelSpec)
	if !ok {
		return fmt.Errorf("logctx: unknown log level %q", levelSpec)
	}
	b.level = level
	for _, l := range b.loggers {
		l.SetLevel(level)
	}
	return nil
}

// Close flushes and closes the underlying log file rotator.
func (b *Backend) Close() error {
	return b.rotator.Close()
}
