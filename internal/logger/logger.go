package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger wraps a zap SugaredLogger and scrubs sensitive values from the
// key/value pairs before they are written.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

func New(env string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(env) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: z.Sugar()}, nil
}

// Nop discards everything; used by tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, kv ...any) { l.SugaredLogger.Debugw(msg, scrub(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.SugaredLogger.Infow(msg, scrub(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.SugaredLogger.Warnw(msg, scrub(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.SugaredLogger.Errorw(msg, scrub(kv)...) }
func (l *Logger) Fatal(msg string, kv ...any) { l.SugaredLogger.Fatalw(msg, scrub(kv)...) }

func (l *Logger) With(kv ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(scrub(kv)...)}
}

const redacted = "[REDACTED]"

func scrub(kv []any) []any {
	if len(kv) == 0 {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key, _ := kv[i].(string)
		val := kv[i+1]
		if isSensitive(key) {
			val = redacted
		} else if s, ok := val.(string); ok && looksLikeJWT(s) {
			val = redacted
		}
		out = append(out, kv[i], val)
	}
	return out
}

func isSensitive(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, s := range []string{"token", "password", "secret", "authorization", "api_key", "apikey", "refresh"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func looksLikeJWT(s string) bool {
	if len(s) < 20 || !strings.HasPrefix(s, "eyJ") {
		return false
	}
	return strings.Count(s, ".") == 2
}
