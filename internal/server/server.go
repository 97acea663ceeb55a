package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/fitdash/internal/dashboard"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc      *dashboard.Service
	gatherer prometheus.Gatherer
	log      *slog.Logger
	apiKey   string
	router   chi.Router
}

// New creates a new Server with all routes configured. A nil gatherer
// leaves /metrics unmounted.
func New(svc *dashboard.Service, apiKey string, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	s := &Server{
		svc:      svc,
		gatherer: gatherer,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/views/{metric}", s.handleView)
		r.Get("/raw/{metric}", s.handleRaw)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/cache", s.handleCache)

		// Sync (API key required when configured)
		r.With(APIKeyAuth(s.apiKey)).Post("/sync", s.handleSync)
	})
}
