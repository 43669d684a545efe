// Package log provides the structured logger used throughout tsgopipe, a
// thin logrus adapter so callers depend on the small Logger interface
// rather than logrus directly.
package log

import (
	"sync"
)

// Logger is the structured logging contract satisfied by every component,
// including pkg/plugin.ReportSink and internal/restart.ReportSink (both are
// structural subsets of it).
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once   sync.Once
	logger Logger
)

// GetLogger returns the process-wide logger. Init must run first.
func GetLogger() Logger {
	return logger
}

// Init configures the process-wide logger exactly once; later calls are
// no-ops, matching the teacher's singleton-init pattern.
func Init(cfg *LoggerConfig) {
	once.Do(func() {
		var err error
		err = initByConfig(cfg)
		if err != nil {
			panic(err)
		}
	})
}

// L returns the process-wide logger, initializing a stdout/info default
// if Init was never called (convenient for tests and one-off commands).
func L() Logger {
	if logger == nil {
		Init(&LoggerConfig{
			Level:   "info",
			Pattern: "%time [%level] %field%msg\n",
			Time:    "2006-01-02T15:04:05.000Z07:00",
		})
	}
	return logger
}
