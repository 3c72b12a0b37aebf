// internal/agent/executor.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/browser"
	"github.com/xkilldash9x/agentxen/internal/llmutil"
)

// PageProvider returns the session's page, creating it on first use.
type PageProvider func(ctx context.Context) (browser.Page, error)

// ActionHandler performs one validated action against the page.
type ActionHandler func(ctx context.Context, page browser.Page, action Action) (schemas.ActionResult, error)

// Executor runs planned actions one at a time, in plan order. A failed
// action is recorded in its result and never stops the rest of the plan.
type Executor struct {
	logger   *zap.Logger
	handlers map[schemas.ActionType]ActionHandler
}

// NewExecutor creates an Executor with handlers for every supported action.
func NewExecutor(logger *zap.Logger) *Executor {
	e := &Executor{
		logger:   logger.Named("executor"),
		handlers: make(map[schemas.ActionType]ActionHandler),
	}
	e.registerHandlers()
	return e
}

func (e *Executor) registerHandlers() {
	e.handlers[schemas.ActionNavigate] = e.handleNavigate
	e.handlers[schemas.ActionClick] = e.handleClick
	e.handlers[schemas.ActionTypeText] = e.handleType
	e.handlers[schemas.ActionExtract] = e.handleExtract
	e.handlers[schemas.ActionScreenshot] = e.handleScreenshot
}

// Execute attempts every action and returns one result per action, in order.
// The page is requested only when the first valid action runs.
func (e *Executor) Execute(ctx context.Context, actions []RawAction, pages PageProvider) []schemas.ActionResult {
	results := make([]schemas.ActionResult, 0, len(actions))
	for i, raw := range actions {
		result := e.executeOne(ctx, raw, pages)
		if result.Status == schemas.StatusError {
			e.logger.Warn("Action failed",
				zap.Int("index", i),
				zap.String("action", result.Action),
				zap.String("error_code", result.ErrorCode.String()),
				zap.String("error", result.Error))
		} else {
			e.logger.Debug("Action succeeded", zap.Int("index", i), zap.String("action", result.Action))
		}
		results = append(results, result)
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, raw RawAction, pages PageProvider) (result schemas.ActionResult) {
	name := raw.TypeName()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Panic while executing action", zap.String("action", name), zap.Any("panic", r), zap.Stack("stack"))
			result = failedResult(name, fmt.Errorf("panic during %s: %v", name, r))
		}
	}()

	action, err := ParseAction(raw)
	if err != nil {
		return failedResult(name, err)
	}
	handler, ok := e.handlers[action.Type]
	if !ok {
		return failedResult(name, &ActionError{Code: schemas.ErrCodeUnknownAction, Message: "no handler registered for '" + name + "'"})
	}

	page, err := pages(ctx)
	if err != nil {
		return failedResult(name, fmt.Errorf("failed to open page: %w", err))
	}

	result, err = handler(ctx, page, action)
	if err != nil {
		return failedResult(name, err)
	}
	return result
}

func (e *Executor) handleNavigate(ctx context.Context, page browser.Page, action Action) (schemas.ActionResult, error) {
	if err := page.Goto(ctx, action.URL); err != nil {
		return schemas.ActionResult{}, err
	}
	return schemas.ActionResult{Action: action.Type.String(), Status: schemas.StatusSuccess, URL: action.URL}, nil
}

func (e *Executor) handleClick(ctx context.Context, page browser.Page, action Action) (schemas.ActionResult, error) {
	if err := page.Click(ctx, action.Selector); err != nil {
		return schemas.ActionResult{}, err
	}
	return schemas.ActionResult{Action: action.Type.String(), Status: schemas.StatusSuccess, Selector: action.Selector}, nil
}

func (e *Executor) handleType(ctx context.Context, page browser.Page, action Action) (schemas.ActionResult, error) {
	if err := page.Fill(ctx, action.Selector, action.Text); err != nil {
		return schemas.ActionResult{}, err
	}
	return schemas.ActionResult{Action: action.Type.String(), Status: schemas.StatusSuccess, Selector: action.Selector}, nil
}

func (e *Executor) handleExtract(ctx context.Context, page browser.Page, action Action) (schemas.ActionResult, error) {
	text, err := page.TextContent(ctx, action.Selector)
	if err != nil {
		return schemas.ActionResult{}, err
	}
	return schemas.ActionResult{
		Action:   action.Type.String(),
		Status:   schemas.StatusSuccess,
		Selector: action.Selector,
		Content:  llmutil.TruncateRunes(text, ExtractLimit),
	}, nil
}

func (e *Executor) handleScreenshot(ctx context.Context, page browser.Page, action Action) (schemas.ActionResult, error) {
	if err := page.Screenshot(ctx, action.Path); err != nil {
		return schemas.ActionResult{}, err
	}
	return schemas.ActionResult{Action: action.Type.String(), Status: schemas.StatusSuccess, Path: action.Path}, nil
}

func failedResult(name string, err error) schemas.ActionResult {
	return schemas.ActionResult{
		Action:    name,
		Status:    schemas.StatusError,
		Error:     err.Error(),
		ErrorCode: ClassifyError(err),
	}
}

// ClassifyError maps an action failure to an error code. Typed errors are
// checked first; message heuristics cover drivers that do not wrap the
// browser sentinels.
func ClassifyError(err error) schemas.ErrorCode {
	var actionErr *ActionError
	if errors.As(err, &actionErr) && actionErr.Code != "" {
		return actionErr.Code
	}
	switch {
	case errors.Is(err, browser.ErrElementNotFound):
		return schemas.ErrCodeElementNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return schemas.ErrCodeTimeoutError
	case errors.Is(err, browser.ErrNavigation):
		return schemas.ErrCodeNavigationError
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "no element found"), strings.Contains(msg, "could not find node"):
		return schemas.ErrCodeElementNotFound
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return schemas.ErrCodeTimeoutError
	case strings.Contains(msg, "net::ERR"):
		return schemas.ErrCodeNavigationError
	}
	return schemas.ErrCodeExecutionFailure
}
