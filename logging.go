package zcore

import (
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger type used throughout this package: a
// logiface.Logger bound to stumpy's JSON event implementation, following
// the example corpus's convention of a package-level pluggable logger with
// a safe, silent default.
type Logger = logiface.Logger[*stumpy.Event]

var globalLogger struct {
	sync.RWMutex
	logger *Logger
}

// SetLogger installs logger as the package-level structured logger. A
// ThreadManager constructed without WithManagerLogger uses the logger
// installed at the time of its construction; later calls do not affect it.
// Passing nil restores the disabled default.
func SetLogger(logger *Logger) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.logger = logger
}

// getGlobalLogger returns the installed package-level logger, or a disabled
// no-op logger if none has been set.
func getGlobalLogger() *Logger {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	if globalLogger.logger != nil {
		return globalLogger.logger
	}
	return disabledLogger
}

// disabledLogger discards everything; constructing it still requires a
// stumpy event factory/writer pair even though neither is ever invoked,
// since canLog(LevelDisabled) is always false.
var disabledLogger = stumpy.L.New(
	stumpy.L.WithLevel(logiface.LevelDisabled),
	stumpy.L.WithStumpy(),
)

// NewStumpyLogger builds a Logger at the given level, writing JSON events
// via stumpy with the supplied options (see stumpy.WithTimeField,
// stumpy.WithWriter, etc).
func NewStumpyLogger(level logiface.Level, options ...stumpy.Option) *Logger {
	return stumpy.L.New(
		stumpy.L.WithLevel(level),
		stumpy.L.WithStumpy(options...),
	)
}
