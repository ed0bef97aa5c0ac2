package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicStreamer implements Streamer against the Anthropic Messages API.
type AnthropicStreamer struct {
	client *anthropic.Client
}

var _ Streamer = (*AnthropicStreamer)(nil)

// NewAnthropicStreamer builds a streamer using the SDK's default client,
// which reads ANTHROPIC_API_KEY from the environment.
func NewAnthropicStreamer() (*AnthropicStreamer, error) {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	c := anthropic.NewClient()
	return &AnthropicStreamer{client: &c}, nil
}

// StreamTurn runs one streaming Messages call, forwarding text and partial
// tool-call increments to emit, and returns the accumulated turn.
func (s *AnthropicStreamer) StreamTurn(ctx context.Context, params anthropic.MessageNewParams, emit func(Chunk) error) (*Turn, error) {
	stream := s.client.Messages.NewStreaming(ctx, params)

	var msg anthropic.Message
	toolIDForIndex := map[int64]string{}
	toolNameForIndex := map[int64]string{}

	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return nil, fmt.Errorf("accumulate stream event: %w", err)
		}

		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockStartEvent:
			if ev.ContentBlock.Type == "tool_use" {
				tb := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock)
				toolIDForIndex[ev.Index] = tb.ID
				toolNameForIndex[ev.Index] = tb.Name
				if err := emit(ToolCallChunk{ID: tb.ID, Name: tb.Name, Index: int(ev.Index)}); err != nil {
					return nil, err
				}
			}

		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if err := emit(TextChunk{Content: delta.Text}); err != nil {
					return nil, err
				}
			case anthropic.InputJSONDelta:
				if toolIDForIndex[ev.Index] == "" {
					continue
				}
				err := emit(ToolCallChunk{
					ID:        toolIDForIndex[ev.Index],
					Name:      toolNameForIndex[ev.Index],
					ArgsDelta: delta.PartialJSON,
					Index:     int(ev.Index),
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic stream: %w", err)
	}

	turn := &Turn{}
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			turn.Text += v.Text
		case anthropic.ToolUseBlock:
			args := json.RawMessage(v.JSON.Input.Raw())
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{ID: v.ID, Name: v.Name, Args: args})
		}
	}
	return turn, nil
}
