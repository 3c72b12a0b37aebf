// internal/agent/errors.go
package agent

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/agentxen/api/schemas"
)

var (
	// ErrInitialization is reported when the LLM probe or the browser launch fails.
	ErrInitialization = errors.New("agent initialization failed")
	// ErrNotInitialized is returned for commands that arrive before a successful Initialize.
	ErrNotInitialized = errors.New("agent not initialized")
)

// ActionError describes why a single planned action could not be carried out.
// It never aborts the rest of the plan.
type ActionError struct {
	Code    schemas.ErrorCode
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ActionError) Unwrap() error { return e.Err }

func invalidParams(format string, args ...interface{}) *ActionError {
	return &ActionError{Code: schemas.ErrCodeInvalidParameters, Message: fmt.Sprintf(format, args...)}
}

// PlanningError means the model could not produce a usable plan. The whole
// command fails with it.
type PlanningError struct {
	Reason string
	// Raw is the model output, when one was received.
	Raw string
	Err error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *PlanningError) Unwrap() error { return e.Err }
