package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

func TestChunkMarkdownSplitsBySections(t *testing.T) {
	content := strings.Join([]string{
		"# Title",
		"Intro paragraph.",
		"## Setup",
		"Install the thing.",
		"## Usage",
		"Run the thing.",
	}, "\n")

	chunks := chunkMarkdown(content, "docs/guide.md")
	require.Len(t, chunks, 3)

	assert.Equal(t, "Introduction", chunks[0].Section)
	assert.Equal(t, 1, chunks[0].LineStart)
	assert.Equal(t, 2, chunks[0].LineEnd)

	assert.Equal(t, "Setup", chunks[1].Section)
	assert.Equal(t, 3, chunks[1].LineStart)
	assert.Equal(t, 4, chunks[1].LineEnd)
	assert.Contains(t, chunks[1].Content, "Install the thing.")

	assert.Equal(t, "Usage", chunks[2].Section)
	assert.Equal(t, 5, chunks[2].LineStart)
	assert.Equal(t, 6, chunks[2].LineEnd)
}

func TestChunkMarkdownDetectsNumberedList(t *testing.T) {
	content := strings.Join([]string{
		"1. First step",
		"2. Second step",
		"3. Third step",
	}, "\n")

	chunks := chunkMarkdown(content, "steps.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.ContentTypeList, chunks[0].ContentType)
	assert.Equal(t, 3, chunks[0].Extra["list_length"])
}

func TestChunkMarkdownDetectsTable(t *testing.T) {
	content := strings.Join([]string{
		"Overview of options.",
		"| Name | Value |",
		"|------|-------|",
		"| a    | 1     |",
	}, "\n")

	chunks := chunkMarkdown(content, "table.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.ContentTypeTable, chunks[0].ContentType)
}

func TestChunkMarkdownDetectsCodeFence(t *testing.T) {
	content := strings.Join([]string{
		"Example:",
		"```go",
		"fmt.Println(1)",
		"```",
	}, "\n")

	chunks := chunkMarkdown(content, "example.md")
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.ContentTypeCode, chunks[0].ContentType)
}

func TestChunkMarkdownSplitsOversizedText(t *testing.T) {
	var lines []string
	for i := 0; i < 300; i++ {
		lines = append(lines, "This is a long filler line used to grow the section body.")
	}
	content := "## Big\n" + strings.Join(lines, "\n")

	chunks := chunkMarkdown(content, "big.md")
	require.Greater(t, len(chunks), 1)

	// Line ranges stay within the file and in order.
	total := len(lines) + 1
	for _, c := range chunks {
		assert.Equal(t, "Big", c.Section)
		assert.GreaterOrEqual(t, c.LineStart, 1)
		assert.LessOrEqual(t, c.LineEnd, total)
		assert.LessOrEqual(t, c.LineStart, c.LineEnd)
	}
}

func TestChunkMarkdownDocTypes(t *testing.T) {
	md := chunkMarkdown("hello", "a.md")
	require.Len(t, md, 1)
	assert.Equal(t, "markdown", md[0].DocType)

	txt := chunkMarkdown("hello", "a.txt")
	require.Len(t, txt, 1)
	assert.Equal(t, "text", txt[0].DocType)
}
