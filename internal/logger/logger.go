package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	sphttp "github.com/wolfeidau/sitepack/internal/http"
)

func Setup(dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// Requests logs every request served by the dev server and attaches the
// logger to the request context.
func Requests(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			ctx := logger.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("addr", sphttp.ClientIPFromContext(r.Context())).
				Logger().WithContext(r.Context())

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			ev := zerolog.Ctx(ctx).Info()
			if rec.status >= http.StatusInternalServerError {
				ev = zerolog.Ctx(ctx).Error()
			}
			ev.Int("status", rec.status).
				Int64("bytes", rec.bytes).
				Dur("duration", time.Since(started)).
				Msg("http request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
