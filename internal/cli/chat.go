package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docqa/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions in a terminal chat UI",
	Long: `Open a full-screen chat over the configured vector store.

Type \q or press Ctrl+C to quit and \timing to toggle response times.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	qa, comps, err := newQA(cfg, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	summary := fmt.Sprintf("store=%s  llm=%s  k=%d", cfg.VectorDB, cfg.LLM.Backend, cfg.VectorCount)
	return tui.Run(cmd.Context(), qa, summary)
}
