package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

var (
	askTopK int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the indexed corpus",
	Long: `Runs the full retrieval pipeline for a natural-language question:
intent analysis, hybrid search, optional section expansion and
reranking, then synthesizes an answer with citations.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "n", 0, "number of sources to consider (0 = default)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}

	ctx := context.Background()
	answer, err := askService.Ask(ctx, args[0], askTopK)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	return outputAnswer(cmd, answer)
}

func outputAnswer(cmd *cobra.Command, answer *domain.Answer) error {
	cmd.Println(answer.Text)
	if len(answer.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, c := range answer.Citations {
			cmd.Printf("  [%d] %s\n", i+1, c.String())
		}
	}
	cmd.Println()
	cmd.Printf("Intent: %s (%.0f%% confidence)\n", answer.Intent, answer.Confidence*100)
	return nil
}
