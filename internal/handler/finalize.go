package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/service"
	"github.com/toolforge/api/pkg/response"
)

type FinalizeHandler struct {
	service   *service.PipelineService
	validator *validator.Validate
}

func NewFinalizeHandler(svc *service.PipelineService, v *validator.Validate) *FinalizeHandler {
	return &FinalizeHandler{
		service:   svc,
		validator: v,
	}
}

// Finalize handles POST /api/finalize. The response carries the outcome
// in-band: a validation rejection returns 200 with success=false and the
// diagnostics, so the caller can decide between editing and abandoning.
func (h *FinalizeHandler) Finalize(c *fiber.Ctx) error {
	var req model.FinalizeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if req.JobID == "" && req.Document == nil {
		return response.ValidationError(c, "Either jobId or document is required", nil)
	}

	result, err := h.service.Finalize(c.Context(), &req)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.OK(c, result)
}
