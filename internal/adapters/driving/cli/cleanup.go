package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry-cli/internal/corpus"
	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

var (
	cleanupCommit  bool
	cleanupBackend string
	recoverFile    string
	purgeFile      string
	purgeConfirm   bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [root]",
	Short: "Soft-delete points whose source file no longer exists",
	Long: `Scans the corpus root and marks every indexed point whose file is
gone as deleted. Runs in dry-run mode unless --commit is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCleanup,
}

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Clear soft-delete marks",
	Long: `Clears the soft-delete mark from points. With --file only points of
that file are recovered, otherwise every soft-deleted point is.`,
	Args: cobra.NoArgs,
	RunE: runRecover,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently remove soft-deleted points",
	Long: `Permanently removes soft-deleted points from all backends. This cannot
be undone and refuses to run without --confirm.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupCommit, "commit", false, "apply the changes (default is dry-run)")
	cleanupCmd.Flags().StringVar(&cleanupBackend, "backend", domain.BackendPrimary, "backend to scan")
	recoverCmd.Flags().StringVarP(&recoverFile, "file", "f", "", "recover only this file's points")
	purgeCmd.Flags().StringVarP(&purgeFile, "file", "f", "", "purge only this file's points")
	purgeCmd.Flags().BoolVar(&purgeConfirm, "confirm", false, "confirm the permanent removal")
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(purgeCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}

	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	root, err := corpusRoot(arg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	scanner := corpus.NewScanner(appConfig.Corpus.Extensions)
	existing, err := scanner.Scan(ctx, root)
	if err != nil {
		return fmt.Errorf("scanning %s failed: %w", root, err)
	}

	result, err := storeService.CleanupDeletedFiles(ctx, existing, cleanupBackend, !cleanupCommit)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	mode := "Marked"
	if result.DryRun {
		mode = "Would mark"
	}
	cmd.Printf("Scanned %d points. %s %d (%d failed).\n", result.Scanned, mode, result.Marked, result.Failed)
	for _, orphan := range result.Orphans {
		cmd.Printf("  %s\n", orphan)
	}
	if result.DryRun && result.Marked > 0 {
		cmd.Println("Re-run with --commit to apply.")
	}
	return nil
}

func runRecover(cmd *cobra.Command, _ []string) error {
	if err := initServices(); err != nil {
		return err
	}

	recovered, err := storeService.RecoverDeleted(context.Background(), recoverFile)
	if err != nil {
		return fmt.Errorf("recover failed: %w", err)
	}
	cmd.Printf("Recovered %d points.\n", recovered)
	return nil
}

func runPurge(cmd *cobra.Command, _ []string) error {
	if err := initServices(); err != nil {
		return err
	}

	purged, err := storeService.PurgeDeleted(context.Background(), purgeFile, purgeConfirm)
	if err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	cmd.Printf("Purged %d points.\n", purged)
	return nil
}
