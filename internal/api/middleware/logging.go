package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const RequestIDHeader = "X-Request-ID"

type ctxLoggerKey struct{}

// statusRecorder remembers what the handler wrote so the access line can
// report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n

	return n, err
}

// Logging gives every request a logger tagged with its request id and, when a
// span is active, its trace id. Server errors are logged at error level and
// client errors at warn so that shopper validation noise stays out of alerts.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)

		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		}
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
		}

		logger := slog.Default().With(attrs...)
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sr, r.WithContext(ContextWithLogger(r.Context(), logger)))

		level := slog.LevelInfo
		switch {
		case sr.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case sr.status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		logger.Log(r.Context(), level, "request served",
			slog.Int("status", sr.status),
			slog.Int("bytes", sr.bytes),
			slog.Duration("elapsed", time.Since(began)),
			slog.String("remote_addr", r.RemoteAddr),
		)
	})
}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// LoggerFromContext falls back to slog.Default for background work that never
// passed through Logging.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*slog.Logger); ok {
		return logger
	}

	return slog.Default()
}
