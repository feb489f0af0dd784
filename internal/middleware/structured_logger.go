package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"petfolio/internal/contextutils"
)

// LoggingConfig holds configuration for structured logging middleware
type LoggingConfig struct {
	SlowRequestThreshold time.Duration `json:"slow_request_threshold"`
	// SkipPaths are served without a completion log line.
	SkipPaths []string `json:"skip_paths"`
}

// DefaultLoggingConfig returns production-ready logging configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SlowRequestThreshold: time.Second,
		SkipPaths:            []string{"/metrics"},
	}
}

// StructuredLogging logs one line per completed request on the request-scoped logger
func StructuredLogging(logger *zap.Logger, config *LoggingConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggingConfig()
	}
	skip := make(map[string]bool, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := contextutils.GetRequestStart(r.Context())
			requestLogger := contextutils.GetLogger(r.Context(), logger)
			writer := wrapResponseWriter(w)

			next.ServeHTTP(writer, r)

			duration := time.Since(start)
			level := getLogLevel(writer.Status(), duration, config)
			if ce := requestLogger.Check(level, "Request completed"); ce != nil {
				ce.Write(
					zap.Int("status", writer.Status()),
					zap.Duration("duration", duration),
					zap.Int64("response_size", writer.bytesWritten),
					zap.String("query", r.URL.RawQuery),
					zap.String("user_agent", r.UserAgent()),
				)
			}
		})
	}
}

// getLogLevel escalates by status and latency
func getLogLevel(status int, duration time.Duration, config *LoggingConfig) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	case config.SlowRequestThreshold > 0 && duration > config.SlowRequestThreshold:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}
