package slogutil

import (
	"io"
	"log/slog"
	"os"

	"archscan/internal/config"
	"archscan/internal/paths"
)

// LoggerFactory creates loggers for a CLI run.
// Level precedence: CLI flags > config > info.
type LoggerFactory struct {
	repoRoot string
	config   *config.Config
	cliLevel *slog.Level
	stderr   io.Writer
	closers  []io.Closer
}

// NewLoggerFactory creates a new logger factory.
// cliLevel is nil when no CLI override was specified.
func NewLoggerFactory(repoRoot string, cfg *config.Config, cliLevel *slog.Level) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		repoRoot: repoRoot,
		config:   cfg,
		cliLevel: cliLevel,
		stderr:   os.Stderr,
	}
}

// SetConsole replaces the console writer (stderr by default).
func (f *LoggerFactory) SetConsole(w io.Writer) {
	f.stderr = w
}

// ScanLogger returns the logger used by scan and plan commands. It always logs
// to the console and, when logging.file is set, also to .archscan/logs/scan.log.
// A log file that cannot be opened degrades to console-only logging.
func (f *LoggerFactory) ScanLogger() *slog.Logger {
	level := f.EffectiveLevel()
	console := f.handler(f.stderr, level)

	if !f.config.Logging.File || f.repoRoot == "" {
		return slog.New(console)
	}

	file, err := OpenScanLog(paths.ScanLogPath(f.repoRoot), f.config.Logging.MaxFileBytes, f.config.Logging.MaxBackups)
	if err != nil {
		return slog.New(console)
	}
	f.closers = append(f.closers, file)

	// The file always records at debug so a quiet console still leaves a trail.
	return slog.New(NewTeeHandler(console, NewScanHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

// EffectiveLevel resolves the level from CLI flag, then config.
func (f *LoggerFactory) EffectiveLevel() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelInfo
}

func (f *LoggerFactory) handler(w io.Writer, level slog.Level) slog.Handler {
	return NewFormatLogger(w, f.config.Logging.Format, level).Handler()
}

// Close closes all log files opened by this factory.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
