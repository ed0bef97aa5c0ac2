package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild store indexes from record files",
		Long:  "Rebuild the thread and document indexes by scanning record files on disk. Use this after manual edits or a crash left an index stale.",
		Run:   runReindex,
	}

	RootCmd.AddCommand(cmd)
}

func runReindex(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	threads, err := openThreads(cfg)
	if err != nil {
		exitErr("open threads", err)
	}
	if err := threads.Rebuild(); err != nil {
		exitErr("rebuild thread index", err)
	}

	mem, idx, err := openMemory(cfg)
	if err != nil {
		exitErr("open memory", err)
	}
	defer idx.Close()
	if err := mem.Parents().RebuildIndex(); err != nil {
		exitErr("rebuild document index", err)
	}

	fmt.Println(`{"status":"success"}`)
}
