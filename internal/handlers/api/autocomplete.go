package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"kwrec/internal/autocomplete"
	"kwrec/internal/metrics"
	"kwrec/internal/models"
	"kwrec/internal/registry"
	"kwrec/internal/validation"
)

// AutocompleteHandler serves keyword name completions.
type AutocompleteHandler struct {
	registry   *registry.Registry
	engine     *autocomplete.Engine
	metrics    *metrics.Metrics
	defaultMax int
}

// NewAutocompleteHandler creates a new autocomplete handler. m may be nil.
func NewAutocompleteHandler(reg *registry.Registry, engine *autocomplete.Engine, m *metrics.Metrics, defaultMax int) *AutocompleteHandler {
	if defaultMax <= 0 {
		defaultMax = autocomplete.DefaultMaxResults
	}
	return &AutocompleteHandler{registry: reg, engine: engine, metrics: m, defaultMax: defaultMax}
}

// Suggest completes a partially typed keyword name.
func (h *AutocompleteHandler) Suggest(c fiber.Ctx) error {
	var body validation.AutocompleteRequest
	if handled, err := decodeBody(c, &body); handled {
		return err
	}

	snap := h.registry.Current()
	if snap == nil {
		return modelNotLoaded(c)
	}
	limit := body.MaxResults
	if limit == 0 {
		limit = h.defaultMax
	}
	partial := strings.TrimSpace(body.Keyword)
	library := validation.NormalizeKeyword(body.Library)

	start := time.Now()
	suggestions := h.engine.Suggest(snap.Model, autocomplete.Query{Partial: partial, Library: library, MaxResults: limit})
	if h.metrics != nil {
		h.metrics.ObserveQuery("autocomplete", time.Since(start))
	}

	return jsonSuccess(c, models.AutocompleteResponse{
		Query:       partial,
		Library:     library,
		Mode:        string(h.engine.Mode()),
		Generation:  snap.Generation,
		Suggestions: suggestions,
	})
}
