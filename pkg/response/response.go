package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeRateLimited       = "RATE_LIMITED"
	CodeJobFailed         = "JOB_FAILED"
	CodeServiceError      = "SERVICE_ERROR"
	CodeIncompleteContext = "INCOMPLETE_CONTEXT"
	CodeSchemaViolation   = "SCHEMA_VIOLATION"
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeProviderOverload  = "PROVIDER_OVERLOAD"
	CodeValidationFailed  = "COMPONENT_VALIDATION_FAILED"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, CodeForbidden, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

// IncompleteContext reports a stage invoked without its required upstream
// sections; the caller must supply the missing data, not the server.
func IncompleteContext(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeIncompleteContext, message, details)
}

// SchemaViolation reports structured output that failed contract checks
func SchemaViolation(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeSchemaViolation, message, nil)
}

// MissingCredential reports a paused job waiting on a provider secret
func MissingCredential(c *fiber.Ctx, credential string) error {
	return Error(c, fiber.StatusConflict, CodeMissingCredential,
		"Provider credential is not configured", fiber.Map{"credential": credential})
}

// ProviderOverload reports exhausted retries against the generation provider
func ProviderOverload(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeProviderOverload, message, nil)
}

// ComponentValidationFailed reports a component rejected by static analysis,
// carrying the diagnostics so the caller can decide on an edit.
func ComponentValidationFailed(c *fiber.Ctx, details interface{}) error {
	return Error(c, fiber.StatusUnprocessableEntity, CodeValidationFailed,
		"Assembled component failed validation", details)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
