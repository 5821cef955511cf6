package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kwrec/internal/autocomplete"
	"kwrec/internal/handlers/api"
	"kwrec/internal/jobs"
	"kwrec/internal/metrics"
	"kwrec/internal/middleware"
	"kwrec/internal/recommend"
	"kwrec/internal/registry"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Registry     *registry.Registry
	Recommend    *recommend.Engine
	Autocomplete *autocomplete.Engine
	// Default list lengths when a request leaves them at zero.
	RecommendMax    int
	AutocompleteMax int
	// Source is what admin reload reads from.
	Source    registry.Source
	Retrainer *jobs.Retrainer
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	// Verifier guards /api/admin. Nil leaves admin routes open in
	// development and unregistered otherwise.
	Verifier middleware.TokenVerifier
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(d Deps) {
	recommendHandler := api.NewRecommendHandler(d.Registry, d.Recommend, d.Metrics, d.RecommendMax)
	autocompleteHandler := api.NewAutocompleteHandler(d.Registry, d.Autocomplete, d.Metrics, d.AutocompleteMax)
	modelHandler := api.NewModelHandler(d.Registry, d.Source, d.Retrainer, d.Metrics)

	s.App.Get("/healthz", modelHandler.Health)
	if d.Gatherer != nil {
		s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := s.App.Group("/api")
	apiGroup.Post("/recommend", recommendHandler.Recommend)
	apiGroup.Post("/context", recommendHandler.Context)
	apiGroup.Post("/autocomplete", autocompleteHandler.Suggest)
	apiGroup.Get("/popular", recommendHandler.Popular)
	apiGroup.Get("/libraries", recommendHandler.Libraries)
	apiGroup.Get("/stats", modelHandler.Stats)
	apiGroup.Get("/model", modelHandler.Info)

	switch {
	case d.Verifier != nil:
		auth := middleware.NewAuthMiddleware(d.Verifier)
		admin := apiGroup.Group("/admin", auth.RequireBearer)
		admin.Post("/reload", modelHandler.Reload)
		admin.Post("/train", modelHandler.Train)
	case s.Cfg.IsDev():
		slog.Warn("admin endpoints are unauthenticated; set OIDC_ISSUER and OIDC_CLIENT_ID to protect them")
		admin := apiGroup.Group("/admin")
		admin.Post("/reload", modelHandler.Reload)
		admin.Post("/train", modelHandler.Train)
	default:
		slog.Info("admin endpoints disabled: OIDC is not configured")
	}
}
