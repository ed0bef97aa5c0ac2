package agent

import (
	"encoding/json"

	"github.com/rcliao/agent-chat/internal/codec"
)

// Message is one entry in a conversation. All message kinds are codec
// entities so a persisted state blob can be reconstructed with concrete
// types intact.
type Message interface {
	codec.Entity
}

// HumanMessage is a message sent by the user.
type HumanMessage struct {
	Content string `json:"content"`
}

func (*HumanMessage) EntityType() string { return "human" }

// AIMessage is a model turn: its text plus any tool calls it requested.
type AIMessage struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

func (*AIMessage) EntityType() string { return "ai" }

// ToolMessage is the result of executing one tool call.
type ToolMessage struct {
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Status     string `json:"status"` // "success" or "error"
}

func (*ToolMessage) EntityType() string { return "tool" }

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

func init() {
	codec.Register("human", func() codec.Entity { return &HumanMessage{} })
	codec.Register("ai", func() codec.Entity { return &AIMessage{} })
	codec.Register("tool", func() codec.Entity { return &ToolMessage{} })
}
