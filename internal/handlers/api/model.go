package api

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"kwrec/internal/jobs"
	"kwrec/internal/metrics"
	"kwrec/internal/model"
	"kwrec/internal/models"
	"kwrec/internal/recommend"
	"kwrec/internal/registry"
	"kwrec/internal/store"
	"kwrec/internal/training"
)

const statsTopKeywords = 10

// ModelHandler exposes model status and admin operations.
type ModelHandler struct {
	registry  *registry.Registry
	source    registry.Source
	retrainer *jobs.Retrainer
	metrics   *metrics.Metrics
}

// NewModelHandler creates a new model handler. retrainer and m may be nil.
func NewModelHandler(reg *registry.Registry, source registry.Source, retrainer *jobs.Retrainer, m *metrics.Metrics) *ModelHandler {
	return &ModelHandler{registry: reg, source: source, retrainer: retrainer, metrics: m}
}

// Info describes the active model.
func (h *ModelHandler) Info(c fiber.Ctx) error {
	snap := h.registry.Current()
	if snap == nil {
		return modelNotLoaded(c)
	}
	return jsonSuccess(c, snap.Info())
}

// Stats summarises the active model's tables.
func (h *ModelHandler) Stats(c fiber.Ctx) error {
	snap := h.registry.Current()
	if snap == nil {
		return modelNotLoaded(c)
	}
	m := snap.Model
	contexts := make(map[string]int, m.Order())
	for k := 1; k <= m.Order(); k++ {
		contexts["order_"+strconv.Itoa(k)] = m.Contexts(k)
	}
	return jsonSuccess(c, models.StatsResponse{
		Model:       snap.Info(),
		Contexts:    contexts,
		TopKeywords: recommend.Popular(m, "", statsTopKeywords),
	})
}

// Health reports readiness. It answers 503 until a model is published.
func (h *ModelHandler) Health(c fiber.Ctx) error {
	resp := models.HealthResponse{}
	if err := h.registry.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	snap := h.registry.Current()
	if snap == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "error",
			"error":  "model not loaded",
			"data":   resp,
		})
	}
	resp.Ready = true
	resp.Generation = snap.Generation
	resp.LoadedAt = snap.LoadedAt
	return jsonSuccess(c, resp)
}

// Reload replaces the active model with the stored one.
func (h *ModelHandler) Reload(c fiber.Ctx) error {
	snap, err := h.registry.Reload(c.Context(), h.source)
	if h.metrics != nil {
		h.metrics.RecordReload(err)
	}
	if err != nil {
		var le *model.LoadError
		switch {
		case errors.Is(err, store.ErrNoSnapshot):
			return jsonError(c, fiber.StatusNotFound, "no stored model")
		case errors.As(err, &le):
			return jsonError(c, fiber.StatusUnprocessableEntity, le.Error())
		default:
			slog.Error("model reload failed", "error", err)
			return jsonError(c, fiber.StatusInternalServerError, "failed to reload model")
		}
	}
	slog.Info("model reloaded by admin", "subject", c.Locals("subject"), "generation", snap.Generation)
	return jsonSuccess(c, snap.Info())
}

// Train retrains from the configured trace directory and publishes the result.
func (h *ModelHandler) Train(c fiber.Ctx) error {
	if h.retrainer == nil || h.retrainer.TraceDir() == "" {
		return jsonError(c, fiber.StatusConflict, "no trace directory configured")
	}

	rep, err := h.retrainer.RunOnce(context.WithoutCancel(c.Context()))
	switch {
	case errors.Is(err, jobs.ErrTrainingInProgress):
		return jsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, training.ErrNoTracesTrained):
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	case err != nil:
		slog.Error("training failed", "error", err)
		return jsonError(c, fiber.StatusInternalServerError, "training failed")
	}

	var generation uint64
	if snap := h.registry.Current(); snap != nil {
		generation = snap.Generation
	}
	slog.Info("model retrained by admin", "subject", c.Locals("subject"), "files", len(rep.Files))
	return jsonSuccess(c, models.TrainResponse{Run: rep.Run(), Generation: generation})
}
