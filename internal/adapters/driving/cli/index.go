package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	indexWatch bool
	indexFile  string
)

var indexCmd = &cobra.Command{
	Use:   "index [root]",
	Short: "Index a corpus directory",
	Long: `Scans the corpus root, chunks every supported file and upserts the
chunks into the configured backends. Unchanged chunks are skipped and
chunks whose source file disappeared are soft-deleted.

With --watch the command keeps running and re-indexes files as they
change on disk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "watch the corpus and re-index on change")
	indexCmd.Flags().StringVarP(&indexFile, "file", "f", "", "index a single file (corpus-relative path)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if indexFile != "" {
		result, err := indexService.IndexFile(ctx, root, indexFile)
		if err != nil {
			return fmt.Errorf("indexing %s failed: %w", indexFile, err)
		}
		cmd.Printf("%s: %d added, %d updated, %d skipped, %d deleted\n",
			result.FilePath, result.Added, result.Updated, result.Skipped, result.Deleted)
		return nil
	}

	cmd.Printf("Indexing %s...\n", root)
	result, err := indexService.IndexCorpus(ctx, root)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	cmd.Printf("Indexed %d files (%d failed): %d added, %d updated, %d skipped, %d deleted, %d cleaned up\n",
		result.Files, result.Failed, result.Added, result.Updated, result.Skipped, result.Deleted, result.CleanedUp)

	if !indexWatch {
		return nil
	}

	cmd.Printf("Watching %s for changes (Ctrl-C to stop)...\n", root)
	watchCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := indexService.Watch(watchCtx, root); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
