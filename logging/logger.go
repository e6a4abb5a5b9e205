// Package logging builds the application's zap logger: console and rotating
// file output, with sensitive fields redacted on every path.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures NewLogger.
type Options struct {
	// Level is the minimum level written. Development mode lowers it to debug.
	Level zapcore.Level
	// FilePath enables JSON file output with rotation when non-empty.
	FilePath string
	// Development selects colored console output.
	Development bool
	// File overrides the rotation settings.
	File FileWriterConfig
	// Console overrides stdout, mainly for tests.
	Console zapcore.WriteSyncer
}

// Logger wraps zap.Logger. Every entry, including those written through the
// *zap.Logger returned by Zap, passes through the redacting core.
//
//	logger, err := logging.NewLogger(logging.Options{Level: zapcore.InfoLevel, FilePath: path})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	logger.Info("capture started", zap.String("capture_id", id))
type Logger struct {
	zap           *zap.Logger
	log           *zap.Logger
	sugar         *zap.SugaredLogger
	isDevelopment bool
	logFilePath   string
	closeFile     func() error
}

// NewLogger creates a Logger. It fails only if the log file directory cannot be created.
func NewLogger(opts Options) (*Logger, error) {
	level := opts.Level
	if opts.Development && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}

	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}

	var fileWriter zapcore.WriteSyncer
	closeFile := func() error { return nil }
	if opts.FilePath != "" {
		cfg := opts.File
		if cfg == (FileWriterConfig{}) {
			cfg = DefaultFileWriterConfig()
		}
		w, closer, err := NewFileWriter(opts.FilePath, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.FilePath, err)
		}
		fileWriter, closeFile = w, closer
	}

	core := NewMultiCore(level, console, fileWriter, opts.Development)
	return newLogger(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), opts.Development, opts.FilePath, closeFile), nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return newLogger(zap.NewNop(), false, "", nil)
}

func newLogger(z *zap.Logger, dev bool, path string, closeFile func() error) *Logger {
	if closeFile == nil {
		closeFile = func() error { return nil }
	}
	// Skip this wrapper layer in caller info.
	wrapped := z.WithOptions(zap.AddCallerSkip(1))
	return &Logger{
		zap:           z,
		log:           wrapped,
		sugar:         wrapped.Sugar(),
		isDevelopment: dev,
		logFilePath:   path,
		closeFile:     closeFile,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	// Syncing stdout fails on some terminals; that is not worth reporting.
	_ = l.zap.Sync()
	return nil
}

// Close flushes and releases the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.Sync()
	return l.closeFile()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.log.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field) { l.log.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field) { l.log.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.log.Error(msg, fields...) }

// Fatal logs then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...zap.Field) { l.log.Fatal(msg, fields...) }

// Infow logs loosely-typed key-value pairs at InfoLevel.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Warnw logs loosely-typed key-value pairs at WarnLevel.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// Errorw logs loosely-typed key-value pairs at ErrorLevel.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// With creates a child logger carrying fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return newLogger(l.zap.With(fields...), l.isDevelopment, l.logFilePath, l.closeFile)
}

// Named adds a sub-logger name, shown as the "source" field.
func (l *Logger) Named(name string) *Logger {
	return newLogger(l.zap.Named(name), l.isDevelopment, l.logFilePath, l.closeFile)
}

// Zap returns the underlying zap.Logger for components that take *zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// IsDevelopment returns true if the logger is configured for development mode.
func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

// LogFilePath returns the path to the log file, empty when file output is off.
func (l *Logger) LogFilePath() string {
	return l.logFilePath
}
