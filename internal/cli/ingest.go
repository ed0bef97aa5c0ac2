package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest [text]",
		Short: "Add a document to long-term memory",
		Long:  "Add a document to long-term memory. Text can be a positional arg or piped via stdin.",
		Run:   runIngest,
	}

	cmd.Flags().StringP("source", "s", "", "Source label stored in document metadata")

	RootCmd.AddCommand(cmd)
}

func runIngest(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")

	// Get text: positional arg first, then check stdin
	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}

	if strings.TrimSpace(text) == "" {
		exitErr("ingest", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}

	mem, idx, err := openMemory(cfg)
	if err != nil {
		exitErr("open memory", err)
	}
	defer idx.Close()

	var metadata map[string]string
	if source != "" {
		metadata = map[string]string{"source": source}
	}

	key, err := mem.AddDocument(cmd.Context(), strings.TrimSpace(text), metadata)
	if err != nil {
		exitErr("ingest", err)
	}

	b, _ := json.Marshal(map[string]string{"key": key})
	fmt.Println(string(b))
}
