package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Long:  `Shows per-backend point counts and the embedding configuration.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if err := initServices(); err != nil {
		return err
	}

	stats, err := storeService.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Model: %s (%d dimensions)\n", stats.Model, stats.Dimensions)
	cmd.Println()
	for _, b := range stats.Backends {
		status := "available"
		if !b.Available {
			status = "unavailable"
		}
		cmd.Printf("  %-8s %s\n", b.Name, status)
		cmd.Printf("           %d points, %d soft-deleted\n", b.Points, b.Deleted)
	}
	return nil
}
