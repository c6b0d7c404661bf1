package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toolforge/api/internal/model"
)

// IncompleteContextError reports that a stage view could not be built
// because a required upstream section is absent. It is never masked with a
// default value and is always a caller/sequencing defect.
type IncompleteContextError struct {
	Stage   model.Stage
	Missing []string
}

func (e *IncompleteContextError) Error() string {
	return fmt.Sprintf("incomplete context for stage %q: missing %s", e.Stage, strings.Join(e.Missing, ", "))
}

// SchemaViolationError reports generation output that failed structural
// validation. Non-retryable; the offending payload is kept for diagnosis.
type SchemaViolationError struct {
	Stage   model.Stage
	Reason  string
	Payload json.RawMessage
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation in stage %q: %s", e.Stage, e.Reason)
}

// MissingCredentialError reports that a referenced capability needs an
// external secret. It pauses, not fails, the job.
type MissingCredentialError struct {
	Name string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential %q", e.Name)
}

// ProviderOverloadError signals a transient provider failure eligible for
// retry with backoff.
type ProviderOverloadError struct {
	Err error
}

func (e *ProviderOverloadError) Error() string {
	return fmt.Sprintf("provider overloaded: %v", e.Err)
}

func (e *ProviderOverloadError) Unwrap() error { return e.Err }

// ValidationFailedError reports that static validation rejected the
// assembled unit. The sub-chain halts without advancing to finalize.
type ValidationFailedError struct {
	Result *model.ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed with %d diagnostics", len(e.Result.Diagnostics))
}
