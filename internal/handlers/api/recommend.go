package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"kwrec/internal/metrics"
	"kwrec/internal/model"
	"kwrec/internal/models"
	"kwrec/internal/recommend"
	"kwrec/internal/registry"
	"kwrec/internal/validation"
)

// RecommendHandler serves next-keyword recommendations.
type RecommendHandler struct {
	registry   *registry.Registry
	engine     *recommend.Engine
	metrics    *metrics.Metrics
	defaultMax int
}

// NewRecommendHandler creates a new recommend handler. m may be nil.
func NewRecommendHandler(reg *registry.Registry, engine *recommend.Engine, m *metrics.Metrics, defaultMax int) *RecommendHandler {
	if defaultMax <= 0 {
		defaultMax = recommend.DefaultMaxResults
	}
	return &RecommendHandler{registry: reg, engine: engine, metrics: m, defaultMax: defaultMax}
}

// Recommend ranks keywords likely to follow the given keyword and context.
func (h *RecommendHandler) Recommend(c fiber.Ctx) error {
	var body validation.RecommendRequest
	if handled, err := decodeBody(c, &body); handled {
		return err
	}
	return h.respond(c, body.FullContext(), validation.NormalizeKeyword(body.Library), body.MaxRecommendations)
}

// Context ranks keywords likely to follow an explicit keyword sequence.
func (h *RecommendHandler) Context(c fiber.Ctx) error {
	var body validation.ContextRequest
	if handled, err := decodeBody(c, &body); handled {
		return err
	}
	ctx := validation.NormalizeContext(body.Keywords)
	if len(ctx) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "keywords must contain a non-blank keyword")
	}
	return h.respond(c, ctx, validation.NormalizeKeyword(body.Library), body.MaxRecommendations)
}

func (h *RecommendHandler) respond(c fiber.Ctx, ctx []string, library string, limit int) error {
	snap := h.registry.Current()
	if snap == nil {
		return modelNotLoaded(c)
	}
	if limit == 0 {
		limit = h.defaultMax
	}

	start := time.Now()
	res := h.engine.Recommend(snap.Model, recommend.Query{Context: ctx, Library: library, MaxResults: limit})
	if h.metrics != nil {
		h.metrics.ObserveQuery("recommend", time.Since(start))
		if len(ctx) > 0 {
			h.metrics.RecordContextLookup(lookupLabel(snap.Model, ctx[len(ctx)-1]), res.Outcome)
		}
	}

	return jsonSuccess(c, models.RecommendResponse{
		Context:         ctx,
		Library:         library,
		Order:           res.Order,
		Outcome:         res.Outcome,
		Generation:      snap.Generation,
		Recommendations: res.Items,
	})
}

// Popular lists the most used keywords.
func (h *RecommendHandler) Popular(c fiber.Ctx) error {
	q := validation.PopularQuery{
		Library: validation.NormalizeKeyword(c.Query("library")),
		Limit:   fiber.Query[int](c, "limit", h.defaultMax),
	}
	if err := validation.Struct(&q); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	snap := h.registry.Current()
	if snap == nil {
		return modelNotLoaded(c)
	}
	return jsonSuccess(c, recommend.Popular(snap.Model, q.Library, q.Limit))
}

// Libraries summarises each library in the model.
func (h *RecommendHandler) Libraries(c fiber.Ctx) error {
	snap := h.registry.Current()
	if snap == nil {
		return modelNotLoaded(c)
	}
	return jsonSuccess(c, recommend.Libraries(snap.Model))
}

// lookupLabel keeps lookup counters bounded by the vocabulary.
func lookupLabel(m *model.Model, keyword string) string {
	if m.Known(keyword) {
		return keyword
	}
	return models.UnknownKeyword
}
