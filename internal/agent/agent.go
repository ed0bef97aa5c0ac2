// Package agent drives one conversation against a streaming language model
// with tool use, holding the in-memory conversation state between exchanges.
package agent

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultModel is used when no model is configured.
const DefaultModel = string(anthropic.ModelClaude3_7SonnetLatest)

// maxToolRounds bounds the tool loop within one exchange so a misbehaving
// model cannot spin forever.
const maxToolRounds = 16

const defaultSystemPrompt = "You are a helpful assistant with a persistent long-term memory. " +
	"Use the recall tool when a question may be answered by something you learned before, " +
	"and the memorize tool to keep information worth remembering."

// Turn is the accumulated outcome of one streaming model call.
type Turn struct {
	Text      string
	ToolCalls []ToolCall
}

// Streamer performs one streaming model call, emitting text and tool-call
// increments as they arrive and returning the accumulated turn.
type Streamer interface {
	StreamTurn(ctx context.Context, params anthropic.MessageNewParams, emit func(Chunk) error) (*Turn, error)
}

// Options configures a new Agent.
type Options struct {
	Model     string
	MaxTokens int64
	System    string
	Tools     []ToolDefinition
}

// Agent holds one conversation's state and runs exchanges against a model.
// Not safe for concurrent Run calls; callers serialize per conversation.
type Agent struct {
	llm       Streamer
	tools     []ToolDefinition
	model     string
	maxTokens int64
	system    string
	messages  []Message
}

// New creates an agent backed by the given streamer.
func New(llm Streamer, opts Options) *Agent {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	system := opts.System
	if system == "" {
		system = defaultSystemPrompt
	}
	return &Agent{
		llm:       llm,
		tools:     opts.Tools,
		model:     model,
		maxTokens: maxTokens,
		system:    system,
	}
}

// Run handles one user message: it streams model output through emit,
// executes requested tools, and loops until the model stops calling tools.
// On error the conversation retains the messages appended so far, but the
// caller decides whether that state gets persisted.
func (a *Agent) Run(ctx context.Context, input string, emit func(Chunk) error) error {
	a.messages = append(a.messages, &HumanMessage{Content: input})

	for range maxToolRounds {
		turn, err := a.llm.StreamTurn(ctx, a.buildParams(), emit)
		if err != nil {
			return err
		}
		a.messages = append(a.messages, &AIMessage{Content: turn.Text, ToolCalls: turn.ToolCalls})
		if len(turn.ToolCalls) == 0 {
			return nil
		}

		for _, tc := range turn.ToolCalls {
			content, status := a.execTool(ctx, tc)
			if err := emit(ToolResultChunk{Content: content, Status: status}); err != nil {
				return err
			}
			a.messages = append(a.messages, &ToolMessage{
				Content:    content,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Status:     status,
			})
		}
	}

	return fmt.Errorf("agent: exceeded %d tool rounds in one exchange", maxToolRounds)
}

func (a *Agent) execTool(ctx context.Context, tc ToolCall) (content, status string) {
	for i := range a.tools {
		if a.tools[i].Name != tc.Name {
			continue
		}
		out, err := a.tools[i].Run(ctx, tc.Args)
		if err != nil {
			return err.Error(), "error"
		}
		return out, "success"
	}
	return fmt.Sprintf("tool %q not found", tc.Name), "error"
}

// Messages returns the conversation so far.
func (a *Agent) Messages() []Message {
	return a.messages
}

// State returns the conversation as a codec-encodable tree.
func (a *Agent) State() any {
	msgs := make([]any, len(a.messages))
	for i, m := range a.messages {
		msgs[i] = m
	}
	return map[string]any{"messages": msgs}
}

// Restore replaces the conversation from a tree previously produced by
// State and round-tripped through the codec.
func (a *Agent) Restore(v any) error {
	root, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("agent: state is %T, want object", v)
	}
	raw, ok := root["messages"].([]any)
	if !ok {
		return fmt.Errorf("agent: state has no messages list")
	}
	msgs := make([]Message, 0, len(raw))
	for i, rv := range raw {
		m, ok := rv.(Message)
		if !ok {
			return fmt.Errorf("agent: state message %d is %T, not a message entity", i, rv)
		}
		msgs = append(msgs, m)
	}
	a.messages = msgs
	return nil
}

// buildParams converts the conversation into a model request.
func (a *Agent) buildParams() anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: a.system},
		},
		Messages: convertMessages(a.messages),
		Tools:    convertTools(a.tools),
	}
	return params
}

func convertMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch msg := m.(type) {
		case *HumanMessage:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case *AIMessage:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: tc.Args,
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case *ToolMessage:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.Status == "error"),
			))
		}
	}
	return out
}

func convertTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       "object",
					Properties: t.Properties,
					Required:   t.Required,
				},
			},
		})
	}
	return out
}
