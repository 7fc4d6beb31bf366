package domain

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// pointIDScheme versions the id derivation. Bump only with a migration path:
// ids are persisted in both backends and idempotent re-indexing depends on
// reproducing them exactly across process restarts.
const pointIDScheme = "q1"

// PointID derives the deterministic 63-bit id for a file-anchored chunk.
// The same (path, line) pair always yields the same id, so re-submitting
// unchanged content is a no-op upsert.
func PointID(filePath string, lineStart int) int64 {
	return fingerprint(pointIDScheme + "|" + NormalizePath(filePath) + "|" + strconv.Itoa(lineStart))
}

// ContentPointID derives the id for a standalone entry with no file anchor.
// Content is whitespace-normalised first so formatting-only variants of the
// same text collapse to one id.
func ContentPointID(content string) int64 {
	return fingerprint(pointIDScheme + "|" + strings.Join(strings.Fields(content), " "))
}

// fingerprint is an FNV-1a 64-bit hash over UTF-8 bytes, masked to 63 bits
// so the id survives round trips through signed integer columns.
func fingerprint(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s)) //nolint:errcheck // hash.Hash never errors
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// FormatPointID renders an id as a decimal string. Ids cross the tool-call
// boundary as strings because JavaScript callers cannot represent 63-bit
// integers exactly.
func FormatPointID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParsePointID accepts an id as a decimal string.
func ParsePointID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse point id %q: %w", s, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("parse point id %q: %w", s, ErrInvalidInput)
	}
	return id, nil
}
