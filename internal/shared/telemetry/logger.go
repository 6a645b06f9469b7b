package telemetry

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = newLogger("production", os.Stdout)
)

// Init replaces the process logger. Non-production environments log at debug.
func Init(env string) {
	setLogger(newLogger(env, os.Stdout))
}

// SetOutput redirects log lines to w and returns a func restoring the previous logger.
func SetOutput(w io.Writer) func() {
	mu.Lock()
	prev := logger
	logger = newLogger("dev", w)
	mu.Unlock()
	return func() { setLogger(prev) }
}

// Logger exposes the underlying zap logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Logger().Sync()
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(zapcore.DebugLevel, msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(zapcore.InfoLevel, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(zapcore.WarnLevel, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(zapcore.ErrorLevel, msg, fields)
}

func setLogger(l *zap.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

func newLogger(env string, w io.Writer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.LevelKey = "level"
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	level := zapcore.InfoLevel
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging":
	default:
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level)
	return zap.New(core)
}

func write(level zapcore.Level, msg string, fields map[string]any) {
	l := Logger()
	ce := l.Check(level, msg)
	if ce == nil {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	zf := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		zf = append(zf, zap.Any(k, sanitizeValue(k, fields[k])))
	}
	ce.Write(zf...)
}

func sanitizeValue(key string, val any) any {
	k := strings.ToLower(strings.TrimSpace(key))
	if isRedactKey(k) {
		return "[REDACTED]"
	}
	if err, ok := val.(error); ok && err != nil {
		return err.Error()
	}
	return val
}

func isRedactKey(key string) bool {
	switch {
	case strings.Contains(key, "token"),
		strings.Contains(key, "authorization"),
		strings.Contains(key, "password"),
		strings.Contains(key, "secret"),
		strings.Contains(key, "api_key"),
		strings.Contains(key, "apikey"),
		strings.Contains(key, "email"):
		return true
	default:
		return false
	}
}
