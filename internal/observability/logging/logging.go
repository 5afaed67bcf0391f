// Package logging wires up the framework's structured logger. The shape
// (Config, New, per-concern field helpers, a context-carried logger) follows
// mcp-router/internal/observability/logging; the backend is zap, the way
// zmux-server's internal/infrastructure/processmgr scopes a *zap.Logger per
// supervised process.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls where and how verbosely the framework logs.
type Config struct {
	// Path is the log_file from [core]; empty means stderr.
	Path string
	// Level is the effective level after resolving log_level and -d.
	Level zapcore.Level
	// JSON selects JSON encoding; text (console) otherwise.
	JSON bool
}

// ParseLevel maps the INI log_level values (TRACE..FATAL) onto zap's level
// set. zap has no TRACE, so TRACE folds into Debug — the framework never
// needed a finer level than Debug in practice.
func ParseLevel(s string) zapcore.Level {
	switch s {
	case "TRACE", "DEBUG":
		return zapcore.DebugLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds the root logger. A failure to open the configured log file is
// returned to the caller, which decides whether that's fatal (spec §7:
// "cannot open log file" fails init with a non-zero exit).
func New(cfg Config) (*zap.Logger, error) {
	var sink zapcore.WriteSyncer
	if cfg.Path == "" {
		sink = zapcore.AddSync(os.Stderr)
	} else {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		sink = zapcore.AddSync(f)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(cfg.Level))
	return zap.New(core), nil
}

// Nop returns a logger that discards everything, for tests that don't care.
func Nop() *zap.Logger {
	return zap.NewNop()
}
