package peercloud

import (
	"io"
	"os"

	"github.com/go-kit/kit/log"
	lvl "github.com/go-kit/kit/log/level"
)

// Logger is the leveled, key-value logger used across the module. Every call
// takes alternating keys and values, e.g. Debug("event", "drop", "reason",
// "stale").
type Logger interface {
	Info(keyvals ...interface{})
	Debug(keyvals ...interface{})
	Warn(keyvals ...interface{})
	Error(keyvals ...interface{})
	// With returns a child Logger prefixing every line with keyvals.
	With(keyvals ...interface{}) Logger
}

// DefaultLevel filters the lines of DefaultLogger. Set it before the package
// is used to change the verbosity of every peer built without a Logger.
var DefaultLevel = lvl.AllowInfo()

// DefaultLogger writes logfmt lines at DefaultLevel to stderr.
var DefaultLogger = NewKitLogger(DefaultLevel)

// NopLogger discards everything.
var NopLogger Logger = &kitLogger{log.NewNopLogger()}

// kitLogger adapts a go-kit logger to Logger.
type kitLogger struct {
	log.Logger
}

// NewKitLoggerFrom wraps a go-kit logger. Workers log concurrently, so the
// logger is made synchronized.
func NewKitLoggerFrom(l log.Logger) Logger {
	return &kitLogger{log.NewSyncLogger(l)}
}

// NewKitLogger returns a logfmt Logger on stderr restricted by the level
// options.
func NewKitLogger(opts ...lvl.Option) Logger {
	return NewKitLoggerTo(os.Stderr, opts...)
}

// NewKitLoggerTo is NewKitLogger writing to w. Lines carry a UTC timestamp
// and the calling file.
func NewKitLoggerTo(w io.Writer, opts ...lvl.Option) Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	for _, opt := range opts {
		logger = lvl.NewFilter(logger, opt)
	}
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "call", log.Caller(6))
	return NewKitLoggerFrom(logger)
}

func (k *kitLogger) Debug(kv ...interface{}) { lvl.Debug(k.Logger).Log(kv...) }
func (k *kitLogger) Info(kv ...interface{})  { lvl.Info(k.Logger).Log(kv...) }
func (k *kitLogger) Warn(kv ...interface{})  { lvl.Warn(k.Logger).Log(kv...) }
func (k *kitLogger) Error(kv ...interface{}) { lvl.Error(k.Logger).Log(kv...) }

func (k *kitLogger) With(kv ...interface{}) Logger {
	return &kitLogger{log.With(k.Logger, kv...)}
}
