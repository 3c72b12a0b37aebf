// internal/agent/history.go
package agent

import (
	"github.com/xkilldash9x/agentxen/api/schemas"
)

// History is the ordered conversation replayed to the model on every plan.
// It is owned by the controller and touched only from the dispatch goroutine.
type History struct {
	turns    []schemas.ConversationTurn
	maxTurns int
}

// NewHistory creates a history holding at most maxTurns turns. Zero or a
// negative value means unbounded.
func NewHistory(maxTurns int) *History {
	return &History{maxTurns: maxTurns}
}

// Append adds turns in order, then drops the oldest user/assistant pairs
// until the bound holds.
func (h *History) Append(turns ...schemas.ConversationTurn) {
	h.turns = append(h.turns, turns...)
	if h.maxTurns <= 0 {
		return
	}
	for len(h.turns) > h.maxTurns {
		drop := 2
		if len(h.turns) < drop {
			drop = len(h.turns)
		}
		h.turns = h.turns[drop:]
	}
}

// Turns returns a copy of the stored turns, oldest first.
func (h *History) Turns() []schemas.ConversationTurn {
	out := make([]schemas.ConversationTurn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of stored turns.
func (h *History) Len() int { return len(h.turns) }
