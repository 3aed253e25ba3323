package middleware

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"gymdesk/internal/adapters/http/perf"
)

// DefaultSlowRequest is the threshold above which a request is logged at WARN.
const DefaultSlowRequest = 200 * time.Millisecond

// slowRequestThreshold reads GYMDESK_SLOW_REQUEST_MS, falling back to DefaultSlowRequest.
func slowRequestThreshold() time.Duration {
	if n, err := strconv.Atoi(os.Getenv("GYMDESK_SLOW_REQUEST_MS")); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return DefaultSlowRequest
}

// routeLabel names a request by its chi route pattern so member IDs do not
// split one endpoint into many perf rows. Unrouted requests use the raw path.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return r.Method + " " + pattern
		}
	}
	return r.Method + " " + r.URL.Path
}

// Timing returns middleware that logs request duration.
// Health checks and metrics scrapes are excluded.
// Normal requests log at DEBUG; slow requests log at WARN.
// If collector is non-nil, entries are recorded for the perf dashboard;
// 5xx responses are marked failed.
func Timing(collector *perf.Collector) func(http.Handler) http.Handler {
	threshold := slowRequestThreshold()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				elapsed := time.Since(start)
				status := ww.Status()
				if status == 0 {
					// Nothing written; net/http sends 200.
					status = http.StatusOK
				}
				label := routeLabel(r)

				level := slog.LevelDebug
				msg := "request"
				if elapsed >= threshold {
					level, msg = slog.LevelWarn, "slow_request"
				}
				slog.Log(r.Context(), level, msg,
					"request_id", chimw.GetReqID(r.Context()),
					"route", label,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", float64(elapsed.Microseconds())/1000.0,
				)

				if collector != nil {
					collector.Record(perf.Entry{
						Kind:       perf.KindRequest,
						Path:       label,
						StatusCode: status,
						DurationMs: float64(elapsed.Microseconds()) / 1000.0,
						Timestamp:  start,
						Failed:     status >= http.StatusInternalServerError,
					})
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
