// Package cli implements the agent-chat CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-chat/internal/config"
	"github.com/rcliao/agent-chat/internal/embedding"
	"github.com/rcliao/agent-chat/internal/memstore"
	"github.com/rcliao/agent-chat/internal/thread"
	"github.com/rcliao/agent-chat/internal/vecindex"
)

var (
	configPath string
	dataDir    string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "agent-chat",
	Short: "Chat agent backend with durable memory",
	Long:  "A chat agent server that persists conversation threads and keeps a searchable long-term memory on disk.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: $AGENT_CHAT_CONFIG or config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (overrides config)")
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("AGENT_CHAT_CONFIG")
	}
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dataDir != "" {
		cfg.Data.Dir = dataDir
	}
	return cfg, nil
}

func openThreads(cfg config.Config) (*thread.Store, error) {
	return thread.NewStore(filepath.Join(cfg.Data.Dir, "threads"))
}

// openMemory opens the document memory store and its vector index. The caller
// closes the returned index.
func openMemory(cfg config.Config) (*memstore.Store, *vecindex.Index, error) {
	embedder, err := embedding.New(cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	idx, err := vecindex.New(filepath.Join(cfg.Data.Dir, "sources", "index.db"), embedder)
	if err != nil {
		return nil, nil, err
	}

	mem, err := memstore.New(filepath.Join(cfg.Data.Dir, "sources", "doc_store"), idx, cfg.Memory.FragmentSize)
	if err != nil {
		idx.Close()
		return nil, nil, err
	}
	return mem, idx, nil
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
