package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/uzzalhcse/crawlify/internal/fetcherr"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/internal/orchestrator"
	"github.com/uzzalhcse/crawlify/internal/tracer"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// FetchHandler exposes the Tiered Fetch Orchestrator's fetch(request) ->
// Result|Error contract (§1) over HTTP.
type FetchHandler struct {
	orch     *orchestrator.Orchestrator
	recorder *tracer.Recorder
}

func NewFetchHandler(orch *orchestrator.Orchestrator, recorder *tracer.Recorder) *FetchHandler {
	return &FetchHandler{orch: orch, recorder: recorder}
}

type fetchRequestBody struct {
	URL      string          `json:"url"`
	TenantID string          `json:"tenant_id"`
	Plan     string          `json:"plan"`
	TierHint *models.Tier    `json:"tier_hint,omitempty"`
	Budget   models.Budget   `json:"budget"`
	GeoPrefs models.GeoPrefs `json:"geo_prefs"`
	Options  models.Options  `json:"options"`
}

// Fetch runs one fetch request end to end and returns a Result or a
// structured FetchError.
func (h *FetchHandler) Fetch(c *fiber.Ctx) error {
	var body fetchRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if body.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
	}
	if body.Plan == "" {
		body.Plan = "FREE"
	}

	req := models.Request{
		ID:       uuid.NewString(),
		URL:      body.URL,
		TenantID: body.TenantID,
		Plan:     body.Plan,
		TierHint: body.TierHint,
		Budget:   body.Budget,
		GeoPrefs: body.GeoPrefs,
		Options:  body.Options,
	}

	result, ferr := h.orch.Fetch(c.Context(), req)
	if ferr != nil {
		logger.Warn("fetch failed", zap.String("url", req.URL), zap.String("code", ferr.Code))
		return c.Status(statusForError(ferr)).JSON(ferr)
	}
	return c.JSON(result)
}

// GetTrace returns a single decision trace by ID, if the debug recorder
// persisted it (§4.11).
func (h *FetchHandler) GetTrace(c *fiber.Ctx) error {
	id := c.Params("id")
	traces, err := h.recorder.Query(models.TraceFilter{})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to query traces"})
	}
	for _, t := range traces {
		if t.ID == id {
			return c.JSON(t)
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "trace not found"})
}

// ListTraces filters the decision-trace index by domain/tier/success/error.
func (h *FetchHandler) ListTraces(c *fiber.Ctx) error {
	var f models.TraceFilter
	f.Domain = c.Query("domain")
	f.Tier = models.Tier(c.Query("tier"))
	f.ErrorKind = c.Query("error_kind")
	f.URLRegex = c.Query("url_regex")
	if v := c.Query("success"); v != "" {
		b := v == "true"
		f.Success = &b
	}

	traces, err := h.recorder.Query(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(traces)
}

// statusForError maps the structured error taxonomy (§7) onto an HTTP
// status for the REST surface.
func statusForError(e *fetcherr.FetchError) int {
	switch e.Code {
	case fetcherr.CodeHTTPNotFound:
		return fiber.StatusNotFound
	case fetcherr.CodeHTTPGone:
		return fiber.StatusGone
	}
	switch e.Category {
	case fetcherr.CategoryContent:
		return fiber.StatusUnprocessableEntity
	case fetcherr.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	case fetcherr.CategoryAuth:
		return fiber.StatusUnauthorized
	case fetcherr.CategorySecurity, fetcherr.CategoryConfig:
		return fiber.StatusBadRequest
	case fetcherr.CategoryBlocked:
		return fiber.StatusForbidden
	default:
		return fiber.StatusBadGateway
	}
}
