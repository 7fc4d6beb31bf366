package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScanFindsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# hi")
	writeFile(t, root, "docs/guide.md", "# guide")
	writeFile(t, root, "src/main.go", "package main")
	writeFile(t, root, "image.png", "binary")
	writeFile(t, root, ".hidden/notes.md", "secret")
	writeFile(t, root, ".env", "KEY=1")

	s := NewScanner(nil)
	paths, err := s.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"README.md", "docs/guide.md", "src/main.go"}, paths)
}

func TestScanRespectsConfiguredExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "# a")
	writeFile(t, root, "b.go", "package b")

	s := NewScanner([]string{".md"})
	paths, err := s.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md"}, paths)
}

func TestChunkEmptyFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty.md", "  \n\n")

	s := NewScanner(nil)
	chunks, err := s.Chunk(context.Background(), root, "empty.md")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkMissingFile(t *testing.T) {
	s := NewScanner(nil)
	_, err := s.Chunk(context.Background(), t.TempDir(), "gone.md")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{".hidden", true},
		{"path/to/.hidden", true},
		{"dir/.git/config", true},
		{"file.txt", false},
		{"path/to/file.txt", false},
		{"file.hidden", false},
		{".", false},
		{"..", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, isHidden(tt.path), tt.path)
	}
}

func TestWatchDispatchesChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "existing.md", "# hi")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 16)
	s := NewScanner(nil)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, root, func(path string) { changes <- path })
	}()

	// Give the watcher a moment to register.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "new.md", "# new")

	select {
	case path := <-changes:
		assert.Equal(t, "new.md", path)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchIgnoresUnsupportedFiles(t *testing.T) {
	root := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 16)
	s := NewScanner(nil)
	go s.Watch(ctx, root, func(path string) { changes <- path })

	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "image.png", "binary")
	writeFile(t, root, "note.md", "# note")

	select {
	case path := <-changes:
		assert.Equal(t, "note.md", path)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}
