package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask questions about the indexed documents",
	Long: `Start an interactive question loop over the configured vector store.

Type \q to quit and \timing to toggle the response time display.
With a question argument the answer is printed once and the command exits.

Examples:
  docqa query
  docqa query "Who signed the contract?"`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	qa, comps, err := newQA(GetConfig(), log)
	if err != nil {
		return err
	}
	defer comps.Close()

	return NewREPL(qa, os.Stdin, os.Stdout).Run(cmd.Context(), strings.Join(args, " "))
}
