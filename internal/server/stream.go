package server

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/rcliao/agent-chat/internal/agent"
)

// chunkEnvelope is the wire form of one stream increment: {"chunk": {...}}.
type chunkEnvelope struct {
	Chunk any `json:"chunk"`
}

type textChunkWire struct {
	Content string `json:"content"`
	Type    string `json:"type"` // "ai"
}

type toolCallChunkWire struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Args  string `json:"args"`
	Index int    `json:"index"`
	Type  string `json:"type"` // "tool_call_chunk"
}

type toolResultChunkWire struct {
	Content string `json:"content"`
	Type    string `json:"type"` // "tool"
	Status  string `json:"status"`
}

// streamWriter serializes chunks as JSON lines over an event-stream
// response, flushing after each line.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newStreamWriter(w http.ResponseWriter) (*streamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &streamWriter{w: w, flusher: flusher}, nil
}

// start sends the stream headers. Called lazily on the first chunk so
// pre-stream failures can still produce a proper error status.
func (s *streamWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering
	s.w.WriteHeader(http.StatusOK)
}

// emit writes one chunk in its wire shape.
func (s *streamWriter) emit(c agent.Chunk) error {
	var wire any
	switch v := c.(type) {
	case agent.TextChunk:
		wire = textChunkWire{Content: v.Content, Type: "ai"}
	case agent.ToolCallChunk:
		wire = toolCallChunkWire{ID: v.ID, Name: v.Name, Args: v.ArgsDelta, Index: v.Index, Type: "tool_call_chunk"}
	case agent.ToolResultChunk:
		wire = toolResultChunkWire{Content: v.Content, Type: "tool", Status: v.Status}
	default:
		return fmt.Errorf("unknown chunk variant %T", c)
	}

	s.start()
	data, err := json.Marshal(chunkEnvelope{Chunk: wire})
	if err != nil {
		return err
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
