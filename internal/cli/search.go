package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-chat/internal/memstore"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search long-term memory",
		Long:  "Search stored document fragments for matching text.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().IntP("limit", "l", 4, "Max results")
	cmd.Flags().Bool("resolve", false, "Include the parent document of each hit")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	resolve, _ := cmd.Flags().GetBool("resolve")
	query := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	mem, idx, err := openMemory(cfg)
	if err != nil {
		exitErr("open memory", err)
	}
	defer idx.Close()

	fragments, err := mem.Search(cmd.Context(), query, limit)
	if err != nil {
		exitErr("search", err)
	}

	if len(fragments) == 0 {
		fmt.Println("[]")
		return
	}

	type hit struct {
		Text     string            `json:"text"`
		Metadata map[string]string `json:"metadata,omitempty"`
		Parent   string            `json:"parent,omitempty"`
	}

	hits := make([]hit, 0, len(fragments))
	for _, f := range fragments {
		h := hit{Text: f.Text, Metadata: f.Metadata}
		if resolve {
			if parent, err := mem.Resolve(cmd.Context(), f.Metadata[memstore.MetaParentKey]); err == nil {
				h.Parent = parent.Text
			}
		}
		hits = append(hits, h)
	}

	b, _ := json.MarshalIndent(hits, "", "  ")
	fmt.Println(string(b))
}
