package schemas

import (
	"context"
)

// -- LLM Schemas & Interface --

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) String() string { return string(r) }

// ConversationTurn is one message exchanged with the language model.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationOptions holds provider-agnostic tuning parameters.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Controls randomness. Lower is more deterministic.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output valid JSON.
	MaxTokens       int     `json:"max_tokens"`        // Zero leaves the provider default in place.
}

// ChatRequest is a complete, ordered conversation sent to the model in a
// single blocking call. A leading system turn, if present, is the instruction.
type ChatRequest struct {
	Messages []ConversationTurn `json:"messages"`
	Options  GenerationOptions  `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider (e.g., Ollama).
type LLMClient interface {
	// Chat sends the conversation and returns the raw text of the reply.
	Chat(ctx context.Context, req ChatRequest) (string, error)
	// Close cleans up any resources held by the client (e.g., network connections, SDK resources).
	Close() error
}
