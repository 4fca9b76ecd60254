package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhruv465/Project-Call-sub007/internal/api/middleware"
	"github.com/dhruv465/Project-Call-sub007/internal/carrier"
	"github.com/dhruv465/Project-Call-sub007/internal/config"
	"github.com/dhruv465/Project-Call-sub007/internal/database"
	"github.com/dhruv465/Project-Call-sub007/internal/dialog"
	"github.com/dhruv465/Project-Call-sub007/internal/session"
	"github.com/dhruv465/Project-Call-sub007/internal/synth"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Config    *config.Config
	Store     *session.Store
	Engine    *dialog.Engine
	Renderer  *dialog.Renderer
	Carrier   carrier.Client
	Leads     database.LeadRepository
	Campaigns database.CampaignRepository
	Cache     *synth.Cache
	Signer    *AudioSigner
	Registry  *prometheus.Registry
	Logger    *slog.Logger
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux
	deps   Deps
	logger *slog.Logger
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "api")),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes configures all middleware and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	// Global middleware stack.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			s.deps.Registry, promhttp.HandlerOpts{},
		))
	}

	// Carrier callbacks. Signature verification happens per handler so a
	// rejected callback still gets a well-formed response.
	r.Route("/webhooks/voice", func(r chi.Router) {
		r.Post("/answer", s.handleAnswer)
		r.Post("/gather", s.handleGather)
		r.Post("/recording", s.handleRecording)
		r.Post("/status", s.handleStatus)
	})

	// Audio assets referenced from Play verbs.
	r.Get("/audio/{hash}", s.handleAudio)

	// Operator API.
	apiLimiter := middleware.NewIPRateLimiter(middleware.DefaultRateLimitConfig())
	triggerLimiter := middleware.NewIPRateLimiter(middleware.TriggerRateLimitConfig())
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(apiLimiter))

		r.Route("/calls", func(r chi.Router) {
			r.With(middleware.RateLimit(triggerLimiter)).Post("/", s.handleTriggerCall)
			r.Get("/{ref}", s.handleGetCall)
			r.Get("/{ref}/turns", s.handleListTurns)
		})

		r.Route("/leads", func(r chi.Router) {
			r.Post("/", s.handleCreateLead)
			r.Get("/{id}", s.handleGetLead)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/", s.handleCreateCampaign)
			r.Get("/{id}", s.handleGetCampaign)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
