package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rcliao/agent-chat/internal/memstore"
)

// ToolDefinition describes one tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
	Run         func(ctx context.Context, input json.RawMessage) (string, error)
}

const noMemoryFound = "No information found in the memory. If you think it can be found on the internet, try fetch_url instead."

// maxFetchBytes caps how much of a fetched page is returned to the model.
const maxFetchBytes = 64 * 1024

// MemoryTools returns the tools bound to the long-term memory store: recall
// for semantic lookup and memorize for ingestion.
func MemoryTools(mem *memstore.Store) []ToolDefinition {
	return []ToolDefinition{
		{
			Name: "recall",
			Description: "You have a long-term memory. Recall what you have learned in the past. " +
				"Use this when you are not sure about an answer.",
			Properties: map[string]any{
				"query": map[string]any{"type": "string", "description": "What to look up."},
			},
			Required: []string{"query"},
			Run: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in struct {
					Query string `json:"query"`
				}
				if err := json.Unmarshal(input, &in); err != nil {
					return "", err
				}
				frags, err := mem.Search(ctx, in.Query, 2)
				if err != nil {
					return "", err
				}
				if len(frags) == 0 {
					return noMemoryFound, nil
				}
				parts := make([]string, 0, len(frags))
				for _, f := range frags {
					parts = append(parts, fmt.Sprintf("Source: %s\nContent: %s", f.Metadata[memstore.MetaParentKey], f.Text))
				}
				return strings.Join(parts, "\n\n"), nil
			},
		},
		{
			Name: "memorize",
			Description: "Store important information in your long-term memory so it can be " +
				"recalled in future conversations. Use this whenever you learn something worth keeping.",
			Properties: map[string]any{
				"content": map[string]any{"type": "string", "description": "The information to remember."},
			},
			Required: []string{"content"},
			Run: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in struct {
					Content string `json:"content"`
				}
				if err := json.Unmarshal(input, &in); err != nil {
					return "", err
				}
				key, err := mem.AddDocument(ctx, in.Content, nil)
				if err != nil {
					return "", err
				}
				return "Memorized as " + key, nil
			},
		},
	}
}

// FetchURLTool returns the content of a web page.
func FetchURLTool() ToolDefinition {
	client := &http.Client{Timeout: 30 * time.Second}
	return ToolDefinition{
		Name:        "fetch_url",
		Description: "Get the content of a website by URL.",
		Properties: map[string]any{
			"url": map[string]any{"type": "string", "description": "The URL to fetch."},
		},
		Required: []string{"url"},
		Run: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in struct {
				URL string `json:"url"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
			if err != nil {
				return "", err
			}
			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("fetch %s: %w", in.URL, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("fetch %s: status %d", in.URL, resp.StatusCode)
			}
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
			if err != nil {
				return "", err
			}
			return string(body), nil
		},
	}
}

// ReadFileTool reads a file on the local machine.
func ReadFileTool() ToolDefinition {
	return ToolDefinition{
		Name:        "read_file",
		Description: "Read the contents of a file on the local computer.",
		Properties: map[string]any{
			"path": map[string]any{"type": "string", "description": "Path of the file to read."},
		},
		Required: []string{"path"},
		Run: func(ctx context.Context, input json.RawMessage) (string, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(input, &in); err != nil {
				return "", err
			}
			b, err := os.ReadFile(in.Path)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}

// DefaultTools is the standard tool set for a memory-backed chat agent.
func DefaultTools(mem *memstore.Store) []ToolDefinition {
	tools := MemoryTools(mem)
	tools = append(tools, FetchURLTool(), ReadFileTool())
	return tools
}
