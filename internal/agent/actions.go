// internal/agent/actions.go
package agent

import (
	"net/url"
	"strings"

	"github.com/xkilldash9x/agentxen/api/schemas"
)

const (
	// DefaultExtractSelector is used when an extract action names no selector.
	DefaultExtractSelector = "body"
	// DefaultScreenshotPath is used when a screenshot action names no path.
	DefaultScreenshotPath = "screenshot.png"
	// ExtractLimit caps the characters returned by an extract action.
	ExtractLimit = 500
)

// RawAction is one element of the model's "actions" array, exactly as
// decoded. A nil RawAction stands for an element that was not a JSON object.
type RawAction map[string]interface{}

// TypeName returns the action's tag as written by the model, or "unknown".
func (r RawAction) TypeName() string {
	if s, ok := r["type"].(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// Action is a validated browser operation.
type Action struct {
	Type     schemas.ActionType
	URL      string
	Selector string
	Text     string
	Path     string
}

// ParseAction validates a raw action and fills in defaults. All failures are
// *ActionError values.
func ParseAction(raw RawAction) (Action, error) {
	if raw == nil {
		return Action{}, invalidParams("action must be a JSON object")
	}
	typ, ok := raw["type"].(string)
	if !ok || typ == "" {
		return Action{}, invalidParams("action is missing a 'type' field")
	}

	action := Action{Type: schemas.ActionType(typ)}
	var err error
	switch action.Type {
	case schemas.ActionNavigate:
		if action.URL, err = requiredString(raw, "url", false); err != nil {
			return Action{}, err
		}
		action.URL = normalizeURL(action.URL)
	case schemas.ActionClick:
		if action.Selector, err = requiredString(raw, "selector", false); err != nil {
			return Action{}, err
		}
	case schemas.ActionTypeText:
		if action.Selector, err = requiredString(raw, "selector", false); err != nil {
			return Action{}, err
		}
		// An empty string is a legitimate way to clear a field.
		if action.Text, err = requiredString(raw, "text", true); err != nil {
			return Action{}, err
		}
	case schemas.ActionExtract:
		if action.Selector, err = optionalString(raw, "selector", DefaultExtractSelector); err != nil {
			return Action{}, err
		}
	case schemas.ActionScreenshot:
		if action.Path, err = optionalString(raw, "path", DefaultScreenshotPath); err != nil {
			return Action{}, err
		}
	default:
		return Action{}, &ActionError{
			Code:    schemas.ErrCodeUnknownAction,
			Message: "unknown action type '" + typ + "'",
		}
	}
	return action, nil
}

func requiredString(raw RawAction, field string, allowEmpty bool) (string, error) {
	v, present := raw[field]
	if !present || v == nil {
		return "", invalidParams("'%s' action requires a '%s' field", raw.TypeName(), field)
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidParams("'%s' field of '%s' action must be a string", field, raw.TypeName())
	}
	if !allowEmpty && strings.TrimSpace(s) == "" {
		return "", invalidParams("'%s' field of '%s' action must not be empty", field, raw.TypeName())
	}
	return s, nil
}

func optionalString(raw RawAction, field, fallback string) (string, error) {
	v, present := raw[field]
	if !present || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidParams("'%s' field of '%s' action must be a string", field, raw.TypeName())
	}
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	return s, nil
}

// normalizeURL adds an https scheme to bare hosts such as "example.com",
// which models often produce and which the browser would otherwise reject.
func normalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.Contains(trimmed, "://") {
		return trimmed
	}
	if u, err := url.Parse(trimmed); err == nil {
		switch strings.ToLower(u.Scheme) {
		case "about", "data", "file", "javascript", "chrome":
			return trimmed
		}
	}
	return "https://" + trimmed
}
