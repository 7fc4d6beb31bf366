// Package corpus discovers, chunks and watches the files of an indexed
// corpus. Markdown files are chunked by heading section, code files by
// top-level declaration; everything else falls back to the section chunker.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

// Ensure Scanner implements the interface.
var _ driven.CorpusScanner = (*Scanner)(nil)

// DefaultExtensions are the file extensions indexed when no explicit set
// is configured.
var DefaultExtensions = []string{
	".md", ".markdown", ".txt",
	".go", ".py", ".ts", ".tsx", ".js", ".jsx",
}

// codeExtensions routes files to the code chunker.
var codeExtensions = map[string]string{
	".go":  "go",
	".py":  "python",
	".ts":  "typescript",
	".tsx": "typescript",
	".js":  "typescript",
	".jsx": "typescript",
}

// Scanner walks a corpus root and produces chunks for its files.
type Scanner struct {
	extensions map[string]bool
}

// NewScanner creates a scanner restricted to the given extensions.
// An empty list means DefaultExtensions.
func NewScanner(extensions []string) *Scanner {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		set[strings.ToLower(ext)] = true
	}
	return &Scanner{extensions: set}
}

// Scan returns the corpus-relative paths of all indexable files under
// root, sorted for deterministic batch order.
func (s *Scanner) Scan(ctx context.Context, root string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}

		if d.IsDir() {
			if rel != "." && isHidden(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if isHidden(rel) || !s.supported(path) {
			return nil
		}

		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Chunk reads and chunks a single corpus file. The path is corpus-relative.
func (s *Scanner) Chunk(ctx context.Context, root, path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	content := string(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	if lang, ok := codeExtensions[strings.ToLower(filepath.Ext(path))]; ok {
		return chunkCode(content, path, lang), nil
	}
	return chunkMarkdown(content, path), nil
}

// Watch dispatches onChange with a corpus-relative path every time an
// indexable file is created, written, removed or renamed under root.
// It blocks until the context is cancelled.
func (s *Scanner) Watch(ctx context.Context, root string, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the root and every existing subdirectory; fsnotify does not
	// recurse on its own.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel != "." && isHidden(rel) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watching corpus: %w", err)
	}

	logger.Info("Watching %s for changes", root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleFsEvent(watcher, root, event, onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
		}
	}
}

// handleFsEvent translates one fsnotify event into an onChange dispatch.
// New directories are added to the watch set; hidden and unsupported
// paths are ignored.
func (s *Scanner) handleFsEvent(watcher *fsnotify.Watcher, root string, event fsnotify.Event, onChange func(path string)) {
	rel, err := filepath.Rel(root, event.Name)
	if err != nil || isHidden(rel) {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := watcher.Add(event.Name); err != nil {
				logger.Warn("Failed to watch %s: %v", rel, err)
			}
			return
		}
	}

	if !s.supported(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create), event.Op.Has(fsnotify.Write),
		event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		onChange(filepath.ToSlash(rel))
	}
}

func (s *Scanner) supported(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// isHidden reports whether any element of the path starts with a dot.
// "." and ".." path elements do not count as hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "." || part == ".." || part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
