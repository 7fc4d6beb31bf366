package corpus

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

// maxImportLines caps how many import statements are prepended to each
// code chunk for context.
const maxImportLines = 10

// declStarts matches the start of a top-level declaration per language.
var declStarts = map[string]*regexp.Regexp{
	"go":         regexp.MustCompile(`^(func |type \w+ (struct|interface)\b|var \(|const \()`),
	"python":     regexp.MustCompile(`^(def |class |async def )`),
	"typescript": regexp.MustCompile(`^(export )?(function |class |const \w+ = |interface |type \w+ =)`),
}

var importLine = regexp.MustCompile(`^\s*(import |from .+ import |const .+ = require\()`)

// chunkCode splits a source file into one chunk per top-level declaration,
// each prefixed with the file's import statements for context. Leading
// content before the first declaration becomes its own chunk.
func chunkCode(content, path, language string) []domain.Chunk {
	lines := strings.Split(content, "\n")
	decl := declStarts[language]
	imports := extractImports(lines)

	// Find declaration boundaries.
	var starts []int
	for i, line := range lines {
		if decl != nil && decl.MatchString(line) {
			starts = append(starts, i)
		}
	}

	if len(starts) == 0 {
		// No recognizable declarations; emit the whole file.
		return []domain.Chunk{newCodeChunk(lines, 1, len(lines), path, language, "file", nil)}
	}

	var chunks []domain.Chunk
	if starts[0] > 0 {
		head := lines[:starts[0]]
		if strings.TrimSpace(strings.Join(head, "\n")) != "" {
			chunks = append(chunks, newCodeChunk(head, 1, starts[0], path, language, "header", nil))
		}
	}

	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		codeType := "function"
		if isClassDecl(lines[start], language) {
			codeType = "class"
		}
		chunks = append(chunks, newCodeChunk(lines[start:end], start+1, end, path, language, codeType, imports))
	}

	return chunks
}

func newCodeChunk(lines []string, lineStart, lineEnd int, path, language, codeType string, imports []string) domain.Chunk {
	content := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if len(imports) > 0 {
		content = strings.Join(imports, "\n") + "\n\n" + content
	}

	c := domain.Chunk{
		Content:     content,
		FilePath:    filepath.ToSlash(path),
		LineStart:   lineStart,
		LineEnd:     lineEnd,
		ContentType: domain.ContentTypeCode,
		CodeType:    codeType,
		Language:    language,
	}
	if name := declName(lines[0]); name != "" {
		c.Extra = map[string]any{"name": name}
	}
	return c
}

// extractImports returns the file's import statements, capped at
// maxImportLines.
func extractImports(lines []string) []string {
	var imports []string
	for _, line := range lines {
		if importLine.MatchString(line) {
			imports = append(imports, strings.TrimSpace(line))
			if len(imports) == maxImportLines {
				break
			}
		}
	}
	return imports
}

func isClassDecl(line, language string) bool {
	trimmed := strings.TrimSpace(line)
	switch language {
	case "python":
		return strings.HasPrefix(trimmed, "class ")
	case "typescript":
		return strings.Contains(trimmed, "class ")
	case "go":
		return strings.HasPrefix(trimmed, "type ")
	default:
		return false
	}
}

var nameRe = regexp.MustCompile(`(?:func|def|class|function|type|interface)\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`)

// declName extracts the declared identifier from a declaration line.
func declName(line string) string {
	m := nameRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}
