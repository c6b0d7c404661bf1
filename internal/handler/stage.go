package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/pipeline"
	"github.com/toolforge/api/internal/service"
	"github.com/toolforge/api/pkg/response"
)

type StageHandler struct {
	service   *service.PipelineService
	validator *validator.Validate
}

func NewStageHandler(svc *service.PipelineService, v *validator.Validate) *StageHandler {
	return &StageHandler{
		service:   svc,
		validator: v,
	}
}

// Run handles POST /api/stages/:stage/run. Sequenced runs advance a
// persisted job by one stage; isolated runs execute against the document in
// the request body and persist nothing.
func (h *StageHandler) Run(c *fiber.Ctx) error {
	stage, err := pipeline.ParseStage(c.Params("stage"))
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	var req model.StageRunRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if req.Isolated && req.Document == nil {
		return response.ValidationError(c, "Isolated runs require a document", nil)
	}
	if !req.Isolated && req.JobID == "" {
		return response.ValidationError(c, "Job ID is required for sequenced runs", nil)
	}

	result, err := h.service.RunStage(c.Context(), stage, &req)
	if err != nil {
		return pipelineError(c, err)
	}

	return response.OK(c, result)
}
