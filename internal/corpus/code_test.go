package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

func TestChunkCodePython(t *testing.T) {
	content := strings.Join([]string{
		"import os",
		"from pathlib import Path",
		"",
		"def load(path):",
		"    return Path(path).read_text()",
		"",
		"class Loader:",
		"    def run(self):",
		"        pass",
	}, "\n")

	chunks := chunkCode(content, "lib/loader.py", "python")
	require.Len(t, chunks, 3)

	// Header chunk carries the imports region.
	assert.Equal(t, "header", chunks[0].CodeType)

	assert.Equal(t, "function", chunks[1].CodeType)
	assert.Equal(t, "load", chunks[1].Extra["name"])
	assert.Equal(t, 4, chunks[1].LineStart)
	// Imports are prepended for context.
	assert.Contains(t, chunks[1].Content, "import os")
	assert.Contains(t, chunks[1].Content, "def load(path):")

	assert.Equal(t, "class", chunks[2].CodeType)
	assert.Equal(t, "Loader", chunks[2].Extra["name"])

	for _, c := range chunks {
		assert.Equal(t, domain.ContentTypeCode, c.ContentType)
		assert.Equal(t, "python", c.Language)
	}
}

func TestChunkCodeGo(t *testing.T) {
	content := strings.Join([]string{
		"package demo",
		"",
		`import "fmt"`,
		"",
		"type Greeter struct {",
		"\tname string",
		"}",
		"",
		"func (g Greeter) Greet() {",
		"\tfmt.Println(g.name)",
		"}",
	}, "\n")

	chunks := chunkCode(content, "demo/greeter.go", "go")
	require.Len(t, chunks, 3)
	assert.Equal(t, "class", chunks[1].CodeType)
	assert.Equal(t, "Greeter", chunks[1].Extra["name"])
	assert.Equal(t, "function", chunks[2].CodeType)
	assert.Equal(t, "Greet", chunks[2].Extra["name"])
}

func TestChunkCodeNoDeclarations(t *testing.T) {
	content := "# just a script\nprint('hi')\n"

	chunks := chunkCode(content, "script.py", "python")
	require.Len(t, chunks, 1)
	assert.Equal(t, "file", chunks[0].CodeType)
	assert.Equal(t, 1, chunks[0].LineStart)
}

func TestExtractImportsCapped(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "import mod")
	}
	assert.Len(t, extractImports(lines), maxImportLines)
}
