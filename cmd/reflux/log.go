package main

import (
	"context"
	"fmt"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/reflux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.DisableStacktrace = true

	return config.Build()
}

type loggedSignal struct {
	signal capitan.Signal
	level  zapcore.Level
	msg    string
}

var loggedSignals = []loggedSignal{
	{reflux.CacheLoaded, zapcore.InfoLevel, "config loaded"},
	{reflux.CacheReloadSucceeded, zapcore.InfoLevel, "config reloaded"},
	{reflux.CacheReloadFailed, zapcore.ErrorLevel, "config reload failed, keeping previous snapshot"},
	{reflux.CacheStatFailed, zapcore.WarnLevel, "config file unavailable, serving cached snapshot"},
	{reflux.CacheMarkedStale, zapcore.DebugLevel, "config marked stale"},
	{reflux.CacheStateChanged, zapcore.InfoLevel, "cache state changed"},
	{reflux.WatchStarted, zapcore.DebugLevel, "watching config"},
	{reflux.WatchStopped, zapcore.DebugLevel, "stopped watching config"},
	{reflux.WatchFailed, zapcore.WarnLevel, "config watch failed, live reload disabled"},
	{reflux.WatchChangeDetected, zapcore.DebugLevel, "config change detected"},
	{reflux.SessionOpened, zapcore.DebugLevel, "session opened"},
	{reflux.SessionClosed, zapcore.DebugLevel, "session closed"},
}

// hookSignals forwards reflux signals to logger.
func hookSignals(logger *zap.Logger) {
	for _, ls := range loggedSignals {
		capitan.Hook(ls.signal, func(_ context.Context, e *capitan.Event) {
			if ce := logger.Check(ls.level, ls.msg); ce != nil {
				ce.Write(eventFields(e)...)
			}
		})
	}
}

func eventFields(e *capitan.Event) []zap.Field {
	var fields []zap.Field
	if v, ok := reflux.KeyPath.From(e); ok {
		fields = append(fields, zap.String("path", v))
	}
	if v, ok := reflux.KeyFormat.From(e); ok {
		fields = append(fields, zap.String("format", v))
	}
	if v, ok := reflux.KeyVersion.From(e); ok {
		fields = append(fields, zap.Int("version", v))
	}
	if v, ok := reflux.KeyModTime.From(e); ok {
		fields = append(fields, zap.String("mod_time", v))
	}
	if v, ok := reflux.KeyDuration.From(e); ok {
		fields = append(fields, zap.Duration("duration", v))
	}
	if v, ok := reflux.KeyOldState.From(e); ok {
		fields = append(fields, zap.String("old_state", v))
	}
	if v, ok := reflux.KeyNewState.From(e); ok {
		fields = append(fields, zap.String("new_state", v))
	}
	if v, ok := reflux.KeyOp.From(e); ok {
		fields = append(fields, zap.String("op", v))
	}
	if v, ok := reflux.KeyError.From(e); ok {
		fields = append(fields, zap.String("error", v))
	}
	return fields
}
