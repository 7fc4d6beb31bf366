package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

var numberedItemRe = regexp.MustCompile(`(?m)^(\d+)\.\s+(.+)$`)

// AnswerSynthesizer assembles a complete answer out of retrieved chunks.
// The assembly strategy follows the query intent: enumerations rebuild
// numbered lists, explanations stitch chunks in document order, code
// searches group by file, comparisons group by section and factual queries
// return the top hit verbatim.
type AnswerSynthesizer struct{}

// NewAnswerSynthesizer creates an answer synthesizer.
func NewAnswerSynthesizer() *AnswerSynthesizer {
	return &AnswerSynthesizer{}
}

// Synthesize builds an answer from the chunks for the given intent.
// Failures are wrapped so callers can degrade to raw concatenation.
func (s *AnswerSynthesizer) Synthesize(chunks []domain.SearchResult, intent domain.QueryIntent) (string, error) {
	if len(chunks) == 0 {
		return "", domain.NewSynthesisError(fmt.Errorf("no chunks to synthesize from: %w", domain.ErrInvalidInput))
	}

	switch intent {
	case domain.IntentEnumeration:
		return s.synthesizeEnumeration(chunks), nil
	case domain.IntentExplanation:
		return s.synthesizeExplanation(chunks), nil
	case domain.IntentCodeSearch:
		return s.synthesizeCodeSearch(chunks), nil
	case domain.IntentComparison:
		return s.synthesizeComparison(chunks), nil
	default:
		return s.synthesizeFactual(chunks), nil
	}
}

// synthesizeEnumeration rebuilds a numbered list scattered across chunks.
// Items collide by number (later chunks win), the result is sorted, and a
// gap between the highest number and the item count is logged as a likely
// incomplete retrieval.
func (s *AnswerSynthesizer) synthesizeEnumeration(chunks []domain.SearchResult) string {
	items := make(map[int]string)
	for _, chunk := range chunks {
		for _, m := range numberedItemRe.FindAllStringSubmatch(chunk.Content, -1) {
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			items[num] = strings.TrimSpace(m[2])
		}
	}

	if len(items) == 0 {
		logger.Warn("no numbered items found, returning full content")
		parts := make([]string, 0, len(chunks))
		for _, c := range chunks {
			parts = append(parts, c.Content)
		}
		return strings.Join(parts, "\n\n")
	}

	nums := make([]int, 0, len(items))
	for n := range items {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	if nums[len(nums)-1] > len(nums) {
		logger.Warn("list may be incomplete: max number is %d, but only %d items found",
			nums[len(nums)-1], len(nums))
	}

	lines := make([]string, 0, len(nums))
	for _, n := range nums {
		lines = append(lines, fmt.Sprintf("%d. %s", n, items[n]))
	}
	return strings.Join(lines, "\n")
}

// synthesizeExplanation stitches chunks in document order, trimming the
// overlap when a chunk starts with the tail of the previous one.
func (s *AnswerSynthesizer) synthesizeExplanation(chunks []domain.SearchResult) string {
	ordered := make([]domain.SearchResult, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FilePath != ordered[j].FilePath {
			return ordered[i].FilePath < ordered[j].FilePath
		}
		return ordered[i].LineNumber < ordered[j].LineNumber
	})

	var parts []string
	last := ""
	for _, chunk := range ordered {
		content := chunk.Content
		if last != "" {
			tail := last
			if len(tail) > 100 {
				tail = tail[len(tail)-100:]
			}
			if strings.HasPrefix(content, tail) {
				content = content[len(tail):]
			}
		}
		if trimmed := strings.TrimSpace(content); trimmed != "" {
			parts = append(parts, trimmed)
		}
		last = content
	}
	return strings.Join(parts, "\n\n")
}

// synthesizeCodeSearch groups chunks by file, sorted by path then line,
// and renders each as a labelled code block.
func (s *AnswerSynthesizer) synthesizeCodeSearch(chunks []domain.SearchResult) string {
	byFile := make(map[string][]domain.SearchResult)
	for _, chunk := range chunks {
		byFile[chunk.FilePath] = append(byFile[chunk.FilePath], chunk)
	}

	paths := make([]string, 0, len(byFile))
	for p := range byFile {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var sections []string
	for _, path := range paths {
		sections = append(sections, fmt.Sprintf("**File: %s**\n", path))
		fileChunks := byFile[path]
		sort.SliceStable(fileChunks, func(i, j int) bool {
			return fileChunks[i].LineNumber < fileChunks[j].LineNumber
		})
		for _, chunk := range fileChunks {
			sections = append(sections, fmt.Sprintf("Lines %d:", chunk.LineNumber))
			sections = append(sections, fmt.Sprintf("```\n%s\n```\n", chunk.Content))
		}
	}
	return strings.Join(sections, "\n")
}

// synthesizeComparison groups chunks by their section metadata so the two
// sides of a comparison land under separate headings. Chunks without a
// section go under "Other".
func (s *AnswerSynthesizer) synthesizeComparison(chunks []domain.SearchResult) string {
	bySection := make(map[string][]domain.SearchResult)
	for _, chunk := range chunks {
		section := chunk.Section()
		if section == "" {
			section = "Other"
		}
		bySection[section] = append(bySection[section], chunk)
	}

	names := make([]string, 0, len(bySection))
	for n := range bySection {
		names = append(names, n)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("## %s\n", name))
		for _, chunk := range bySection[name] {
			parts = append(parts, chunk.Content, "")
		}
	}
	return strings.Join(parts, "\n")
}

// synthesizeFactual returns the most relevant chunk verbatim.
func (s *AnswerSynthesizer) synthesizeFactual(chunks []domain.SearchResult) string {
	return chunks[0].Content
}
