package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "threads",
		Short: "List conversation threads",
		Run:   runThreads,
	}

	cmd.Flags().Bool("keys-only", false, "Only output thread IDs")

	RootCmd.AddCommand(cmd)
}

func runThreads(cmd *cobra.Command, args []string) {
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	threads, err := openThreads(cfg)
	if err != nil {
		exitErr("open threads", err)
	}

	index, err := threads.List()
	if err != nil {
		exitErr("list threads", err)
	}

	if keysOnly {
		for id := range index {
			fmt.Println(id)
		}
		return
	}

	b, _ := json.MarshalIndent(index, "", "  ")
	fmt.Println(string(b))
}
