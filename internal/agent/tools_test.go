package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcliao/agent-chat/internal/memstore"
)

// memIndex is a substring-matching stand-in for the vector index.
type memIndex struct {
	frags []memstore.Fragment
}

func (m *memIndex) Add(ctx context.Context, frags []memstore.Fragment) error {
	m.frags = append(m.frags, frags...)
	return nil
}

func (m *memIndex) Search(ctx context.Context, query string, k int) ([]memstore.Fragment, error) {
	var out []memstore.Fragment
	for _, f := range m.frags {
		if strings.Contains(f.Text, query) {
			out = append(out, f)
		}
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func newToolMemory(t *testing.T) *memstore.Store {
	t.Helper()
	mem, err := memstore.New(t.TempDir(), &memIndex{}, 0)
	if err != nil {
		t.Fatalf("memstore.New error: %v", err)
	}
	return mem
}

func findTool(t *testing.T, tools []ToolDefinition, name string) ToolDefinition {
	t.Helper()
	for _, tool := range tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not defined", name)
	return ToolDefinition{}
}

func TestMemorizeThenRecall(t *testing.T) {
	mem := newToolMemory(t)
	tools := MemoryTools(mem)
	ctx := context.Background()

	memorize := findTool(t, tools, "memorize")
	out, err := memorize.Run(ctx, json.RawMessage(`{"content": "the sky is blue"}`))
	if err != nil {
		t.Fatalf("memorize error: %v", err)
	}
	if !strings.HasPrefix(out, "Memorized as ") {
		t.Errorf("memorize output = %q", out)
	}

	recall := findTool(t, tools, "recall")
	out, err = recall.Run(ctx, json.RawMessage(`{"query": "sky"}`))
	if err != nil {
		t.Fatalf("recall error: %v", err)
	}
	if !strings.Contains(out, "the sky is blue") {
		t.Errorf("recall output = %q, want the stored fact", out)
	}
	if !strings.Contains(out, "Source: ") {
		t.Errorf("recall output = %q, want a source reference", out)
	}
}

func TestRecallNothingFound(t *testing.T) {
	mem := newToolMemory(t)
	recall := findTool(t, MemoryTools(mem), "recall")

	out, err := recall.Run(context.Background(), json.RawMessage(`{"query": "unknown topic"}`))
	if err != nil {
		t.Fatalf("recall error: %v", err)
	}
	if out != noMemoryFound {
		t.Errorf("recall output = %q, want the no-memory sentinel", out)
	}
}

func TestRecallBadInput(t *testing.T) {
	mem := newToolMemory(t)
	recall := findTool(t, MemoryTools(mem), "recall")
	if _, err := recall.Run(context.Background(), json.RawMessage(`not json`)); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestReadFileTool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	if err := os.WriteFile(path, []byte("file contents"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tool := ReadFileTool()
	input, _ := json.Marshal(map[string]string{"path": path})
	out, err := tool.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("read_file error: %v", err)
	}
	if out != "file contents" {
		t.Errorf("read_file output = %q", out)
	}

	if _, err := tool.Run(context.Background(), json.RawMessage(`{"path": "/no/such/file"}`)); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultTools(t *testing.T) {
	mem := newToolMemory(t)
	tools := DefaultTools(mem)
	for _, name := range []string{"recall", "memorize", "fetch_url", "read_file"} {
		findTool(t, tools, name)
	}
}
