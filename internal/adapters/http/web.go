package web

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/storage"
	emailLogStore "gymdesk/internal/adapters/storage/emaillog"
	memberStore "gymdesk/internal/adapters/storage/member"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
)

// PortalAPI is the member portal backend. *remote.Client satisfies it.
type PortalAPI interface {
	PortalDashboard(ctx context.Context) (json.RawMessage, error)
	WorkoutLogs(ctx context.Context) (json.RawMessage, error)
	TrainingSessions(ctx context.Context) (json.RawMessage, error)
	JoinTrainingSession(ctx context.Context, sessionID string) (json.RawMessage, error)
	LeaveTrainingSession(ctx context.Context, sessionID string) (json.RawMessage, error)
	CheckIn(ctx context.Context) (json.RawMessage, error)
	CheckOut(ctx context.Context) (json.RawMessage, error)
}

// App holds the stores and collaborators the handlers use.
type App struct {
	// Members tries the backend first and falls back to LocalMembers.
	Members      memberStore.Store
	LocalMembers memberStore.Store
	EmailLogs    emailLogStore.Store
	Stats        projections.StatsSource // nil computes stats locally
	Uploader     orchestrators.BulkUploader
	Portal       PortalAPI
	Reminders    orchestrators.SendRemindersDeps
	Metrics      *metrics.Metrics
	OnFallback   storage.FallbackHook
}

// Options configures the middleware chain.
type Options struct {
	// CSRFKey is 32 bytes; nil generates a per-process key.
	CSRFKey       []byte
	SecureCookies bool
	CORSOrigins   []string
	// Verifier enables bearer authentication; nil admits every request.
	Verifier *middleware.TokenVerifier
	// RateLimitPerSecond is the per-IP limit; 0 disables limiting.
	RateLimitPerSecond int
}

// Global app instance (set by NewRouter)
var app *App

// Global perf collector (set by NewRouter)
var perfCollector *perf.Collector

// timeNow is a variable for testability.
var timeNow = time.Now

// csrfKey returns key, or a random key when none is configured.
func csrfKey(key []byte) []byte {
	if len(key) == 32 {
		return key
	}
	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("generate CSRF key: " + err.Error())
	}
	slog.Warn("csrf_random_key", "detail", "CSRF tokens will not survive a restart; set server.csrf_key")
	return key
}

// trustedHosts turns CORS origins into the host[:port] list the CSRF check compares against.
func trustedHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}

// NewRouter wires HTTP handlers and middleware for the API.
// PRE: a.Members, a.LocalMembers and a.EmailLogs are set
func NewRouter(a *App, collector *perf.Collector, opts Options) http.Handler {
	app = a
	perfCollector = collector

	r := chi.NewRouter()

	// RequestID -> Recoverer -> Timing -> CORS -> SecurityHeaders -> RateLimit -> CSRF -> Auth
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Timing(collector))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.SecurityHeaders)
	if opts.RateLimitPerSecond > 0 {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(opts.RateLimitPerSecond, time.Second)))
	}
	r.Use(middleware.CSRF(csrfKey(opts.CSRFKey), opts.SecureCookies, trustedHosts(opts.CORSOrigins)))
	r.Use(middleware.Auth(opts.Verifier))

	r.Get("/health", handleHealth)
	if a.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleStaff))

			r.Get("/perf", handlePerf)

			r.Get("/members", handleListMembers)
			r.Post("/members", handleCreateMember)
			r.Get("/members/stats", handleMemberStats)
			r.Get("/members/template.csv", handleUploadTemplate)
			r.Post("/members/bulk-upload", handleBulkUpload)
			r.Get("/members/{id}", handleGetMember)
			r.Patch("/members/{id}", handleUpdateMember)
			r.Delete("/members/{id}", handleDeleteMember)

			r.Get("/email-logs", handleListEmailLogs)
			r.Post("/emails/{kind}", handleSendEmails)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/portal/dashboard", handlePortalDashboard)
			r.Get("/portal/workout-logs", handlePortalWorkoutLogs)
			r.Get("/portal/training-sessions", handlePortalTrainingSessions)
			r.Post("/portal/training-sessions/{id}/join", handlePortalJoinSession)
			r.Post("/portal/training-sessions/{id}/leave", handlePortalLeaveSession)
			r.Post("/portal/checkin", handlePortalCheckIn)
			r.Post("/portal/checkout", handlePortalCheckOut)
		})
	})

	return r
}
