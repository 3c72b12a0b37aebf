// internal/agent/controller.go
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/browser"
	"github.com/xkilldash9x/agentxen/internal/config"
)

// LLMFactory creates the language model client. It is called on every
// Initialize attempt until one succeeds.
type LLMFactory func(ctx context.Context) (schemas.LLMClient, error)

// Dependencies are the external collaborators of a Controller.
type Dependencies struct {
	NewLLM LLMFactory
	Driver browser.Driver
}

// Controller owns the session: the model client, one browser with its single
// page, and the conversation history. It is not safe for concurrent use; the
// host calls it from one goroutine.
type Controller struct {
	cfg      config.AgentConfig
	deps     Dependencies
	genOpts  schemas.GenerationOptions
	logger   *zap.Logger
	history  *History
	executor *Executor

	llm     schemas.LLMClient
	planner *Planner
	browser browser.Browser
	page    browser.Page

	ready         bool
	driverStopped bool
}

// NewController wires a Controller. Nothing external is touched until Initialize.
func NewController(deps Dependencies, cfg config.AgentConfig, genOpts schemas.GenerationOptions, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		deps:     deps,
		genOpts:  genOpts,
		logger:   logger.Named("controller"),
		history:  NewHistory(cfg.MaxHistoryTurns),
		executor: NewExecutor(logger),
	}
}

// Initialize checks that the model answers, then launches the browser. It
// reports failure instead of returning an error so the caller can retry on
// the next command. Once it has succeeded, later calls do nothing.
func (c *Controller) Initialize(ctx context.Context) bool {
	if c.ready {
		return true
	}
	if err := c.initialize(ctx); err != nil {
		c.logger.Error("Failed to initialize agent", zap.Error(err))
		return false
	}
	c.ready = true
	c.logger.Info("Agent initialized")
	return true
}

func (c *Controller) initialize(ctx context.Context) error {
	if c.llm == nil {
		if c.deps.NewLLM == nil {
			return fmt.Errorf("%w: no language model configured", ErrInitialization)
		}
		llm, err := c.deps.NewLLM(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to create language model client: %w", ErrInitialization, err)
		}
		c.llm = llm
		c.planner = NewPlanner(llm, c.genOpts, c.logger)
	}

	if err := ProbeLLM(ctx, c.llm); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	c.logger.Debug("Language model probe succeeded")

	if c.browser == nil {
		if c.deps.Driver == nil {
			return fmt.Errorf("%w: no browser driver configured", ErrInitialization)
		}
		b, err := c.deps.Driver.Launch(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to launch browser: %w", ErrInitialization, err)
		}
		c.browser = b
	}
	return nil
}

// ProbeLLM sends a one-word conversation to check that the model server is
// reachable and serves the configured model.
func ProbeLLM(ctx context.Context, llm schemas.LLMClient) error {
	probe := schemas.ChatRequest{
		Messages: []schemas.ConversationTurn{{Role: schemas.RoleUser, Content: "Hello"}},
	}
	if _, err := llm.Chat(ctx, probe); err != nil {
		return fmt.Errorf("language model is not reachable: %w", err)
	}
	return nil
}

// Ready reports whether Initialize has succeeded.
func (c *Controller) Ready() bool { return c.ready }

// History returns a copy of the conversation so far.
func (c *Controller) History() []schemas.ConversationTurn { return c.history.Turns() }

// ProcessCommand plans and executes one command. Every failure, including a
// panic, is returned as an error result.
func (c *Controller) ProcessCommand(ctx context.Context, text string) (result schemas.CommandResult) {
	commandID := uuid.NewString()
	logger := c.logger.With(zap.String("command_id", commandID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while processing command", zap.Any("panic", r), zap.Stack("stack"))
			result = errorResult(fmt.Sprintf("internal error: %v", r))
		}
	}()

	if strings.TrimSpace(text) == "" {
		return errorResult("Empty command")
	}
	if !c.ready {
		return errorResult(ErrNotInitialized.Error())
	}

	if c.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CommandTimeout)
		defer cancel()
	}

	logger.Info("Processing command", zap.String("command", text))
	plan, err := c.planner.Plan(ctx, text, c.history)
	if err != nil {
		logger.Error("Planning failed", zap.Error(err))
		return errorResult(err.Error())
	}

	results := c.executor.Execute(ctx, plan.Actions, c.mainPage)
	logger.Info("Command completed", zap.Int("actions", len(results)))
	return schemas.CommandResult{
		Status:  schemas.StatusSuccess,
		Plan:    plan.Summary(),
		Results: results,
	}
}

// mainPage returns the session's only page, opening it on first use.
func (c *Controller) mainPage(ctx context.Context) (browser.Page, error) {
	if c.page != nil {
		return c.page, nil
	}
	if c.browser == nil {
		return nil, ErrNotInitialized
	}
	page, err := c.browser.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	c.page = page
	c.logger.Info("Opened main page")
	return page, nil
}

// Cleanup closes the page, the browser, the driver, and the model client. It
// is safe to call before Initialize and more than once. The session is
// detached immediately; ctx bounds how long Cleanup waits for the closes, and
// any still running when it expires are abandoned.
func (c *Controller) Cleanup(ctx context.Context) {
	var closers []namedCloser
	if c.page != nil {
		closers = append(closers, namedCloser{"page", c.page.Close})
		c.page = nil
	}
	if c.browser != nil {
		closers = append(closers, namedCloser{"browser", c.browser.Close})
		c.browser = nil
	}
	if c.deps.Driver != nil && !c.driverStopped {
		closers = append(closers, namedCloser{"browser driver", c.deps.Driver.Close})
		c.driverStopped = true
	}
	if c.llm != nil {
		closers = append(closers, namedCloser{"language model client", c.llm.Close})
		c.llm = nil
		c.planner = nil
	}
	c.ready = false
	if len(closers) == 0 {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, nc := range closers {
			if err := nc.close(); err != nil {
				c.logger.Warn("Failed to close "+nc.name, zap.Error(err))
			}
		}
	}()

	select {
	case <-done:
		c.logger.Debug("Session cleaned up")
	case <-ctx.Done():
		c.logger.Warn("Cleanup abandoned before all resources closed", zap.Error(ctx.Err()))
	}
}

type namedCloser struct {
	name  string
	close func() error
}

func errorResult(msg string) schemas.CommandResult {
	return schemas.CommandResult{Status: schemas.StatusError, Results: []schemas.ActionResult{}, Error: msg}
}
