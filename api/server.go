/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, included in access logs
  2. Logger:     zap access log (method, path, status, latency)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /healthz                 Liveness check (public)
  /api/holidays            Holiday listing (public)
  /api/business-days       Business-day preview (public)
  /api/employees/*         Profiles, balances and leave records (Basic auth)
  /api/requests/pending    Approval inbox (Basic auth, admin)
  /uploads/*               Stored evidence documents (owner or admin)

AUTHENTICATION:
  HTTP Basic with the employee ID as user name. See auth.go.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures the parts of the router that depend on deployment.
type RouterOptions struct {
	CORSOrigins []string

	// UploadDir is served under UploadRoute when both are set.
	UploadDir   string
	UploadRoute string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger()))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/holidays", h.ListHolidays)
		r.Get("/business-days", h.PreviewBusinessDays)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)

			// Employee routes
			r.Route("/employees", func(r chi.Router) {
				r.Get("/", h.ListEmployees)
				r.Post("/", h.CreateEmployee)
				r.Get("/{id}", h.GetEmployee)
				r.Put("/{id}", h.UpdateEmployee)
				r.Get("/{id}/summary", h.GetSummary)
				r.Get("/{id}/records", h.ListRecords)
				r.Post("/{id}/requests", h.SubmitRequest)
				r.Post("/{id}/monetizations", h.Monetize)

				// Record routes, addressed by position in the history
				r.Put("/{id}/records/{index}", h.CorrectRecord)
				r.Delete("/{id}/records/{index}", h.RemoveRecord)
				r.Post("/{id}/records/{index}/decision", h.DecideRequest)
				r.Post("/{id}/records/{index}/evidence", h.AttachEvidence)
			})

			// Request approval routes
			r.Get("/requests/pending", h.ListPendingRequests)
		})
	})

	if opts.UploadDir != "" && strings.HasPrefix(opts.UploadRoute, "/") {
		route := strings.TrimSuffix(opts.UploadRoute, "/")
		files := http.StripPrefix(route+"/", http.FileServer(http.Dir(opts.UploadDir)))
		r.With(h.Authenticate, h.AuthorizeEvidence).Get(route+"/*", files.ServeHTTP)
	}

	return r
}

// requestLogger writes one access log line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
