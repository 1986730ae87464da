// Package logger holds the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "rfp-engine"

var global *zap.Logger

// New builds a logger writing to w.
// level: debug, info, warn, error, dpanic, panic, fatal
// format: json, console
func New(level, format string, w zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl := zap.InfoLevel
	if err := lvl.Set(strings.ToLower(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.MessageKey = "message"
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encoderCfg)
	case "console":
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	// Callers use L() directly, so the reported caller is the call site itself.
	core := zapcore.NewCore(enc, w, lvl)
	return zap.New(core, zap.AddCaller(), zap.Fields(zap.String("service", serviceName))), nil
}

// Init builds the global stdout logger.
func Init(level, format string) (*zap.Logger, error) {
	l, err := New(level, format, zapcore.Lock(os.Stdout))
	if err != nil {
		return nil, err
	}
	global = l
	return l, nil
}

// L returns the global logger. Panics if not initialized.
func L() *zap.Logger {
	if global == nil {
		panic("logger not initialized: call logger.Init first")
	}
	return global
}

// Sync flushes any buffered log entries.
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
