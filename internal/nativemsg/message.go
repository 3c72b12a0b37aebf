// File: internal/nativemsg/message.go
package nativemsg

import (
	"github.com/xkilldash9x/agentxen/api/schemas"
)

// MessageType defines the kind of message being sent.
// These constants MUST match the extension's background script.
type MessageType string

const (
	// MsgTypeCommand flows extension -> host.
	MsgTypeCommand MessageType = "command"
	// The remaining types flow host -> extension.
	MsgTypeStatus MessageType = "status"
	MsgTypeResult MessageType = "result"
	MsgTypeError  MessageType = "error"
)

// Command is the payload of an inbound command message. The extension also
// reports the tab the user was looking at; the host logs it but always works
// in its own browser.
type Command struct {
	Text  string `json:"text"`
	TabID *int   `json:"tabId,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Message is the single envelope used in both directions. Which fields are
// populated depends on Type.
type Message struct {
	Type MessageType `json:"type"`

	// Inbound.
	Command *Command `json:"command,omitempty"`
	TabID   *int     `json:"tabId,omitempty"`

	// Outbound.
	Message string                 `json:"message,omitempty"`
	Success *bool                  `json:"success,omitempty"`
	Data    *schemas.CommandResult `json:"data,omitempty"`
}

// CommandText returns the command text, or "" when the payload is missing.
func (m *Message) CommandText() string {
	if m == nil || m.Command == nil {
		return ""
	}
	return m.Command.Text
}

// TabContext returns the tab the command was issued from. The nested command value
// wins; older extension builds only set it on the envelope.
func (m *Message) TabContext() (tabID *int, url string) {
	if m == nil {
		return nil, ""
	}
	if m.Command != nil {
		tabID, url = m.Command.TabID, m.Command.URL
	}
	if tabID == nil {
		tabID = m.TabID
	}
	return tabID, url
}

// NewCommand builds an inbound command message.
func NewCommand(text string) *Message {
	return &Message{Type: MsgTypeCommand, Command: &Command{Text: text}}
}

// NewStatus builds a progress notification.
func NewStatus(text string) *Message {
	return &Message{Type: MsgTypeStatus, Message: text}
}

// NewError builds an error notification.
func NewError(text string) *Message {
	return &Message{Type: MsgTypeError, Message: text}
}

// NewResult builds the terminal reply for a command. data may be nil.
func NewResult(success bool, text string, data *schemas.CommandResult) *Message {
	return &Message{Type: MsgTypeResult, Success: &success, Message: text, Data: data}
}
