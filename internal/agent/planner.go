// internal/agent/planner.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// systemPrompt is sent as the first turn of every planning call. It is never
// stored in the history.
const systemPrompt = `You are a browser automation assistant. You translate the user's natural language request into browser actions.

Available actions:
  - navigate: open a URL. Fields: "url" (required).
  - click: click an element. Fields: "selector" (required, CSS selector).
  - type: replace the content of an input. Fields: "selector" (required), "text" (required).
  - extract: read the text of an element. Fields: "selector" (optional, defaults to "body").
  - screenshot: save a PNG of the page. Fields: "path" (optional, defaults to "screenshot.png").

Respond with a single JSON object and nothing else, in this shape:
{"actions": [{"type": "navigate", "url": "https://example.com"}, {"type": "click", "selector": "#submit"}], "explanation": "what the actions achieve"}

Use an empty "actions" array when nothing needs to be done in the browser.`

// ActionPlan is the parsed reply of one planning call.
type ActionPlan struct {
	Actions     []RawAction
	Explanation string
	// Raw is the model output the plan was parsed from.
	Raw string
}

// Summary returns the plan in the shape sent back to the extension.
func (p *ActionPlan) Summary() *schemas.PlannedActions {
	actions := make([]map[string]interface{}, len(p.Actions))
	for i, a := range p.Actions {
		actions[i] = a
	}
	return &schemas.PlannedActions{Actions: actions, Explanation: p.Explanation}
}

// Planner turns a command into an ActionPlan with a single model call.
type Planner struct {
	llm     schemas.LLMClient
	options schemas.GenerationOptions
	logger  *zap.Logger
}

// NewPlanner creates a Planner. JSON output is always requested, whatever
// the options say.
func NewPlanner(llm schemas.LLMClient, options schemas.GenerationOptions, logger *zap.Logger) *Planner {
	options.ForceJSONFormat = true
	return &Planner{
		llm:     llm,
		options: options,
		logger:  logger.Named("planner"),
	}
}

// Plan asks the model for actions that fulfil command, given the earlier
// conversation. The command and the raw reply are appended to history only
// when a plan was parsed.
func (p *Planner) Plan(ctx context.Context, command string, history *History) (*ActionPlan, error) {
	prior := history.Turns()
	messages := make([]schemas.ConversationTurn, 0, len(prior)+2)
	messages = append(messages, schemas.ConversationTurn{Role: schemas.RoleSystem, Content: systemPrompt})
	messages = append(messages, prior...)
	userTurn := schemas.ConversationTurn{Role: schemas.RoleUser, Content: command}
	messages = append(messages, userTurn)

	p.logger.Debug("Requesting action plan", zap.Int("history_turns", len(prior)))
	raw, err := p.llm.Chat(ctx, schemas.ChatRequest{Messages: messages, Options: p.options})
	if err != nil {
		return nil, &PlanningError{Reason: "language model request failed", Err: err}
	}

	plan, err := parsePlan(raw, p.logger)
	if err != nil {
		p.logger.Warn("Model reply is not a valid action plan",
			zap.String("raw_response", llmutil.Truncate(raw, 1000)),
			zap.Error(err))
		return nil, &PlanningError{Reason: "model reply is not a valid action plan", Raw: raw, Err: err}
	}

	history.Append(userTurn, schemas.ConversationTurn{Role: schemas.RoleAssistant, Content: raw})
	p.logger.Debug("Action plan parsed", zap.Int("actions", len(plan.Actions)))
	return plan, nil
}

// ParsePlan decodes a model reply. The reply must be a JSON object, optionally
// wrapped in a markdown fence. A missing or null "actions" field yields an
// empty plan. Array elements that are not objects are kept as nil entries and
// fail individually at execution time.
func ParsePlan(raw string) (*ActionPlan, error) {
	return parsePlan(raw, zap.NewNop())
}

func parsePlan(raw string, logger *zap.Logger) (*ActionPlan, error) {
	fields, err := llmutil.ParseJSONResponse[map[string]jsoniter.RawMessage](raw)
	if err != nil {
		return nil, err
	}
	if fields == nil || *fields == nil {
		return nil, errors.New("expected a JSON object")
	}

	plan := &ActionPlan{Raw: raw}
	if rawActions, ok := (*fields)["actions"]; ok {
		// A JSON null can arrive as an empty RawMessage.
		if isNull(rawActions) {
			plan.Actions = []RawAction{}
			return withExplanation(plan, *fields, logger), nil
		}
		var items []jsoniter.RawMessage
		if err := json.Unmarshal(rawActions, &items); err != nil {
			return nil, fmt.Errorf("'actions' must be an array: %w", err)
		}
		plan.Actions = make([]RawAction, 0, len(items))
		for _, item := range items {
			var action map[string]interface{}
			if err := json.Unmarshal(item, &action); err != nil {
				action = nil
			}
			plan.Actions = append(plan.Actions, RawAction(action))
		}
	}
	return withExplanation(plan, *fields, logger), nil
}

// withExplanation copies a string "explanation" into plan. Any other type is
// logged and dropped; the plan itself is still usable.
func withExplanation(plan *ActionPlan, fields map[string]jsoniter.RawMessage, logger *zap.Logger) *ActionPlan {
	rawExplanation, ok := fields["explanation"]
	if !ok || isNull(rawExplanation) {
		return plan
	}
	if err := json.Unmarshal(rawExplanation, &plan.Explanation); err != nil {
		plan.Explanation = ""
		logger.Debug("Ignoring non-string explanation in model reply",
			zap.String("explanation", llmutil.Truncate(string(rawExplanation), 200)),
			zap.Error(err))
	}
	return plan
}

func isNull(raw jsoniter.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
