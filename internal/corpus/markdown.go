package corpus

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// Chunking limits for the section chunker.
const (
	// chunkSize is the soft character cap for a text chunk. Lists and
	// tables stay together until they reach twice this size.
	chunkSize = 1000

	// chunkOverlapLines is the number of trailing lines carried into the
	// next chunk when an oversized section is split.
	chunkOverlapLines = 100
)

// defaultSection names content that appears before the first heading.
const defaultSection = "Introduction"

// chunkMarkdown splits markdown (or plain text) into section chunks.
// Sections open at "## " headings; numbered lists and tables are kept
// intact unless they grow far past the size cap.
func chunkMarkdown(content, path string) []domain.Chunk {
	lines := strings.Split(content, "\n")

	var chunks []domain.Chunk
	var current []string
	section := defaultSection
	lineStart := 1

	for i, line := range lines {
		lineNo := i + 1

		if strings.HasPrefix(line, "## ") {
			if len(current) > 0 {
				chunks = append(chunks, newSectionChunk(current, lineStart, lineNo-1, section, path))
			}
			current = []string{line}
			section = strings.TrimSpace(line[3:])
			lineStart = lineNo
			continue
		}

		current = append(current, line)
		size := chunkLen(current)

		// Lists and tables only split when far oversized.
		limit := chunkSize
		if isNumberedList(current) || containsTableLine(current) {
			limit = chunkSize * 2
		}

		if size > limit && len(current) > chunkOverlapLines {
			cut := len(current) - chunkOverlapLines
			chunks = append(chunks, newSectionChunk(current[:cut], lineStart, lineNo, section, path))
			current = append([]string(nil), current[cut:]...)
			lineStart = lineNo - chunkOverlapLines + 1
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, newSectionChunk(current, lineStart, len(lines), section, path))
	}

	return chunks
}

// newSectionChunk builds a chunk and classifies its content.
func newSectionChunk(lines []string, lineStart, lineEnd int, section, path string) domain.Chunk {
	c := domain.Chunk{
		Content:   strings.Join(lines, "\n"),
		FilePath:  filepath.ToSlash(path),
		LineStart: lineStart,
		LineEnd:   lineEnd,
		Section:   section,
		DocType:   docTypeFor(path),
	}

	switch {
	case isNumberedList(lines):
		c.ContentType = domain.ContentTypeList
		c.Extra = map[string]any{"list_length": listLength(lines)}
	case containsTableLine(lines):
		c.ContentType = domain.ContentTypeTable
	case containsFence(lines):
		c.ContentType = domain.ContentTypeCode
	default:
		c.ContentType = domain.ContentTypeText
	}

	return c
}

func docTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	default:
		return "text"
	}
}

func chunkLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	return n - 1
}

// isNumberedList reports whether the lines open with a "1. " style item.
func isNumberedList(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	return isListItem(lines[0])
}

func isListItem(line string) bool {
	line = strings.TrimSpace(line)
	return len(line) > 2 && line[0] >= '0' && line[0] <= '9' && line[1] == '.'
}

// listLength counts the consecutive numbered items from the top.
func listLength(lines []string) int {
	count := 0
	for _, line := range lines {
		if !isListItem(line) {
			break
		}
		count++
	}
	return count
}

func containsTableLine(lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, "|") {
			return true
		}
	}
	return false
}

func containsFence(lines []string) bool {
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			return true
		}
	}
	return false
}
