// Package sqlite provides an embedded secondary point backend backed by
// a local SQLite database. It mirrors the remote backend's behaviour for
// small corpora: filters are evaluated in process and similarity queries
// scan all rows, which is adequate for the offline fallback role.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/quarry-cli/internal/adapters/driven/pointstore/sqlite/migrations"
	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
)

// Backend is a SQLite-backed point store. Vectors are stored as
// little-endian float32 blobs and payloads as JSON text.
type Backend struct {
	db   *sql.DB
	path string
	dims int
}

var _ driven.PointBackend = (*Backend)(nil)

// NewBackend opens (or creates) the local point database at the specified
// data directory. If dataDir is empty, defaults to ~/.quarry/data.
func NewBackend(dataDir string, dimensions int) (*Backend, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quarry", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "points.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	b := &Backend{
		db:   db,
		path: dbPath,
		dims: dimensions,
	}

	if err := b.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return b, nil
}

// Name identifies this backend in search results and stats.
func (b *Backend) Name() string {
	return domain.BackendSecondary
}

// Path returns the database file path.
func (b *Backend) Path() string {
	return b.path
}

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// migrate runs all pending migrations.
func (b *Backend) migrate(fsys embed.FS) error {
	_, err := b.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := b.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := b.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := b.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// Upsert inserts or replaces points by id.
func (b *Backend) Upsert(ctx context.Context, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (id, vector, payload, file_path, is_deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector,
			payload = excluded.payload,
			file_path = excluded.file_path,
			is_deleted = excluded.is_deleted,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("marshalling payload for point %d: %w", p.ID, err)
		}

		filePath, _ := p.Payload[domain.KeyFilePath].(string)
		deleted := 0
		if p.Deleted() {
			deleted = 1
		}

		if _, err := stmt.ExecContext(ctx, p.ID, float32SliceToBytes(p.Vector), string(payloadJSON), filePath, deleted); err != nil {
			return fmt.Errorf("upserting point %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// Retrieve fetches points by id. Missing ids are silently omitted.
func (b *Backend) Retrieve(ctx context.Context, ids []int64, withVectors bool) ([]domain.Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("SELECT id, vector, payload FROM points WHERE id IN (%s) ORDER BY id",
		strings.Join(placeholders, ","))

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("retrieving points: %w", err)
	}
	defer rows.Close()

	points, err := scanPoints(rows, withVectors)
	if err != nil {
		return nil, err
	}
	return points, rows.Err()
}

// Query runs a brute-force cosine similarity scan over all live rows,
// optionally constrained by a filter. Fine for local corpus sizes.
func (b *Backend) Query(ctx context.Context, vector []float32, limit int, filter *domain.Filter) ([]domain.ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := b.db.QueryContext(ctx, "SELECT id, vector, payload FROM points")
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}
	defer rows.Close()

	var scored []domain.ScoredPoint
	for rows.Next() {
		p, err := scanPoint(rows, true)
		if err != nil {
			return nil, err
		}
		if filter != nil && !filter.Matches(p.Payload) {
			continue
		}
		score := cosineSimilarity(vector, p.Vector)
		scored = append(scored, domain.ScoredPoint{Point: p, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating points: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// Scroll pages through points matching a filter, ordered by id.
func (b *Backend) Scroll(ctx context.Context, filter *domain.Filter, limit int, offset int64) ([]domain.Point, int64, error) {
	if limit <= 0 {
		return nil, 0, nil
	}

	// Fetch one page at a time; filters evaluate in Go so a page may
	// yield fewer matches than the SQL row count.
	var out []domain.Point
	cursor := offset
	for len(out) < limit {
		rows, err := b.db.QueryContext(ctx,
			"SELECT id, vector, payload FROM points WHERE id > ? ORDER BY id LIMIT ?",
			cursor, limit)
		if err != nil {
			return nil, 0, fmt.Errorf("scrolling points: %w", err)
		}

		var page []domain.Point
		for rows.Next() {
			p, err := scanPoint(rows, false)
			if err != nil {
				rows.Close()
				return nil, 0, err
			}
			page = append(page, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("iterating points: %w", err)
		}
		rows.Close()

		if len(page) == 0 {
			return out, 0, nil
		}

		// Advance the cursor row by row so a mid-page stop resumes at
		// the first unconsumed row, not past the rest of the SQL page.
		for _, p := range page {
			cursor = p.ID
			if filter != nil && !filter.Matches(p.Payload) {
				continue
			}
			out = append(out, p)
			if len(out) == limit {
				return out, cursor, nil
			}
		}

		if len(page) < limit {
			// Underlying table is exhausted.
			return out, 0, nil
		}
	}

	return out, cursor, nil
}

// SetPayload merges payload keys into the points with the given ids.
func (b *Backend) SetPayload(ctx context.Context, ids []int64, payload map[string]any) error {
	if len(ids) == 0 || len(payload) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		var payloadJSON string
		row := tx.QueryRowContext(ctx, "SELECT payload FROM points WHERE id = ?", id)
		if err := row.Scan(&payloadJSON); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return fmt.Errorf("reading payload for point %d: %w", id, err)
		}

		var merged map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &merged); err != nil {
			return fmt.Errorf("decoding payload for point %d: %w", id, err)
		}
		if merged == nil {
			merged = make(map[string]any)
		}
		for k, v := range payload {
			merged[k] = v
		}

		mergedJSON, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("encoding payload for point %d: %w", id, err)
		}

		filePath, _ := merged[domain.KeyFilePath].(string)
		deleted := 0
		if asPayloadBool(merged[domain.KeyIsDeleted]) {
			deleted = 1
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE points
			SET payload = ?, file_path = ?, is_deleted = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, string(mergedJSON), filePath, deleted, id); err != nil {
			return fmt.Errorf("updating payload for point %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// Delete permanently removes points by id.
func (b *Backend) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf("DELETE FROM points WHERE id IN (%s)", strings.Join(placeholders, ","))
	if _, err := b.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting points: %w", err)
	}
	return nil
}

// Count returns the number of points matching the filter.
func (b *Backend) Count(ctx context.Context, filter *domain.Filter) (int, error) {
	if filter == nil {
		var count int
		row := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM points")
		if err := row.Scan(&count); err != nil {
			return 0, fmt.Errorf("counting points: %w", err)
		}
		return count, nil
	}

	rows, err := b.db.QueryContext(ctx, "SELECT payload FROM points")
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var payloadJSON string
		if err := rows.Scan(&payloadJSON); err != nil {
			return 0, fmt.Errorf("scanning payload: %w", err)
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return 0, fmt.Errorf("decoding payload: %w", err)
		}
		if filter.Matches(payload) {
			count++
		}
	}
	return count, rows.Err()
}

// scanPoint reads one point from the current row of a
// (id, vector, payload) result set.
func scanPoint(rows *sql.Rows, withVector bool) (domain.Point, error) {
	var (
		id          int64
		vectorBlob  []byte
		payloadJSON string
	)
	if err := rows.Scan(&id, &vectorBlob, &payloadJSON); err != nil {
		return domain.Point{}, fmt.Errorf("scanning point: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return domain.Point{}, fmt.Errorf("decoding payload for point %d: %w", id, err)
	}

	p := domain.Point{ID: id, Payload: payload}
	if withVector {
		p.Vector = bytesToFloat32Slice(vectorBlob)
	}
	return p, nil
}

func scanPoints(rows *sql.Rows, withVectors bool) ([]domain.Point, error) {
	var points []domain.Point
	for rows.Next() {
		p, err := scanPoint(rows, withVectors)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// float32SliceToBytes encodes a vector as little-endian float32 bytes.
func float32SliceToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes little-endian float32 bytes into a vector.
func bytesToFloat32Slice(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// asPayloadBool interprets the loose boolean encodings that appear in
// decoded JSON payloads.
func asPayloadBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t == "true" || t == "1"
	default:
		return false
	}
}
