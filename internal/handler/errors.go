package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/toolforge/api/internal/pipeline"
	"github.com/toolforge/api/internal/store"
	"github.com/toolforge/api/pkg/response"
)

// pipelineError maps the pipeline error taxonomy onto HTTP responses with
// stable error codes. Anything unmatched is a plain service error.
func pipelineError(c *fiber.Ctx, err error) error {
	var contextErr *pipeline.IncompleteContextError
	var schemaErr *pipeline.SchemaViolationError
	var missingCred *pipeline.MissingCredentialError
	var overload *pipeline.ProviderOverloadError
	var validationErr *pipeline.ValidationFailedError

	switch {
	case errors.As(err, &contextErr):
		return response.IncompleteContext(c, err.Error(), fiber.Map{
			"stage":   contextErr.Stage,
			"missing": contextErr.Missing,
		})
	case errors.As(err, &schemaErr):
		return response.SchemaViolation(c, err.Error())
	case errors.As(err, &missingCred):
		return response.MissingCredential(c, missingCred.Name)
	case errors.As(err, &overload):
		return response.ProviderOverload(c, err.Error())
	case errors.As(err, &validationErr):
		return response.ComponentValidationFailed(c, validationErr.Result)
	case errors.Is(err, store.ErrNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, store.ErrLocked):
		return response.Error(c, fiber.StatusConflict, response.CodeServiceError,
			"Document is locked by another operation", nil)
	}
	return response.ServiceError(c, err.Error())
}

// formatValidationErrors formats validator errors for response
func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
