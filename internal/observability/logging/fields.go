package logging

import "go.uber.org/zap"

// Fixed field helpers so every package logs the same keys the same way.

// Tool identifies the tool a log line is about.
func Tool(name string) zap.Field {
	return zap.String("tool", name)
}

// EventType identifies the event type a log line is about.
func EventType(t string) zap.Field {
	return zap.String("event_type", t)
}

// RequestID identifies a control-surface request end to end.
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// DurationMs represents a duration in milliseconds. Always duration_ms, never
// mixed with duration_ns/s.
func DurationMs(ms int64) zap.Field {
	return zap.Int64("duration_ms", ms)
}

// PID attaches an OS process id.
func PID(pid int) zap.Field {
	return zap.Int("pid", pid)
}

// Err normalizes errors in logs.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Bool/Int/Int64/String re-export the zap constructors under this package so
// callers only need one import for framework field helpers.
func Bool(key string, v bool) zap.Field    { return zap.Bool(key, v) }
func Int(key string, v int) zap.Field      { return zap.Int(key, v) }
func Int64(key string, v int64) zap.Field  { return zap.Int64(key, v) }
func String(key, v string) zap.Field       { return zap.String(key, v) }
