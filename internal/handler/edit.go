package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/service"
	"github.com/toolforge/api/pkg/response"
)

type EditHandler struct {
	service   *service.PipelineService
	validator *validator.Validate
}

func NewEditHandler(svc *service.PipelineService, v *validator.Validate) *EditHandler {
	return &EditHandler{
		service:   svc,
		validator: v,
	}
}

// Edit handles POST /api/jobs/:jobId/edit
func (h *EditHandler) Edit(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.EditRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Edit(c.Context(), jobID, &req)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.OK(c, result)
}
