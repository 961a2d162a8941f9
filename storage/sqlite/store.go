// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/snapnote/core"
	"github.com/poiesic/snapnote/storage"
	"github.com/poiesic/snapnote/storage/sqlite/migrations"

	_ "modernc.org/sqlite" // SQLite driver
)

// dbFile is the database file name inside the data directory.
const dbFile = "screenshots.db"

const screenshotColumns = `id, owner, image_url, thumbnail_url, width, height, file_size,
	content_type, digest, captured_at, note,
	title, description, tags, markdown, vector_key,
	inserted_at, updated_at`

// ScreenshotRepository implements storage.ScreenshotRepository on SQLite.
type ScreenshotRepository struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ storage.ScreenshotRepository = (*ScreenshotRepository)(nil)

// NewScreenshotRepository opens (creating if needed) the record store in dataDir.
//
// Returns storage.ScreenshotRepository interface to enforce abstraction.
func NewScreenshotRepository(dataDir string) (storage.ScreenshotRepository, error) {
	return Open(dataDir)
}

// Open opens the record store in dataDir and runs pending migrations.
// An empty dataDir opens a private in-memory database.
func Open(dataDir string) (*ScreenshotRepository, error) {
	dsn := ":memory:"
	path := ""
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(dataDir, dbFile)
		// WAL mode for concurrent readers while enrichment commits
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == "" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	r := &ScreenshotRepository{
		db:     db,
		path:   path,
		logger: slog.Default().With("component", "sqlite", "path", path),
	}
	if err := r.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return r, nil
}

// Close closes the database connection.
func (r *ScreenshotRepository) Close() error {
	return r.db.Close()
}

// Path returns the database file path, empty for in-memory stores.
func (r *ScreenshotRepository) Path() string {
	return r.path
}

// migrate runs all pending migrations in version order.
func (r *ScreenshotRepository) migrate(fsys fs.FS) error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
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
		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		r.logger.Debug("applied migration", "version", version)
	}
	return nil
}

// AddScreenshot inserts a new record.
func (r *ScreenshotRepository) AddScreenshot(ctx context.Context, s *core.Screenshot) (*core.Screenshot, error) {
	if err := core.ValidateScreenshot(s); err != nil {
		return nil, err
	}
	if s.Id == "" {
		s.Id = core.NewID()
	}
	s.InsertedAt = time.Now().UTC()
	s.UpdatedAt = s.InsertedAt

	tags, err := encodeTags(s.Tags)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO screenshots (`+screenshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(s.Id), s.Owner, s.ImageURL, s.ThumbnailURL, s.Width, s.Height, s.FileSize,
		s.ContentType, s.Digest, s.CapturedAt.UnixMicro(), s.Note,
		s.Title, s.Description, tags, s.Markdown, s.VectorKey,
		s.InsertedAt.UnixMicro(), s.UpdatedAt.UnixMicro())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrDuplicateKey
		}
		return nil, fmt.Errorf("inserting screenshot: %w", err)
	}
	return s, nil
}

// GetScreenshot retrieves a single owner-scoped record.
func (r *ScreenshotRepository) GetScreenshot(ctx context.Context, owner string, id core.ID) (*core.Screenshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+screenshotColumns+` FROM screenshots WHERE id = ? AND owner = ?`,
		string(id), owner)
	s, err := scanScreenshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return s, err
}

// UpdateScreenshot applies owner edits.
func (r *ScreenshotRepository) UpdateScreenshot(ctx context.Context, owner string, id core.ID, patch core.ScreenshotPatch) (*core.Screenshot, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().UnixMicro()}
	if patch.Note != nil {
		sets = append(sets, "note = ?")
		args = append(args, *patch.Note)
	}
	if patch.Tags != nil {
		tags, err := encodeTags(core.NormalizeTags(patch.Tags))
		if err != nil {
			return nil, err
		}
		sets = append(sets, "tags = ?")
		args = append(args, tags)
	}
	args = append(args, string(id), owner)

	query := `UPDATE screenshots SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND owner = ?`
	if err := r.execOne(ctx, query, args...); err != nil {
		return nil, err
	}
	return r.GetScreenshot(ctx, owner, id)
}

// ApplyEnrichment writes all five enrichment fields in one statement.
func (r *ScreenshotRepository) ApplyEnrichment(ctx context.Context, owner string, id core.ID, e core.Enrichment) (*core.Screenshot, error) {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := encodeTags(tags)
	if err != nil {
		return nil, err
	}

	err = r.execOne(ctx, `UPDATE screenshots
		SET title = ?, description = ?, tags = ?, markdown = ?, vector_key = ?, updated_at = ?
		WHERE id = ? AND owner = ?`,
		e.Title, e.Description, encoded, e.Markdown, e.VectorKey, time.Now().UTC().UnixMicro(),
		string(id), owner)
	if err != nil {
		return nil, err
	}
	return r.GetScreenshot(ctx, owner, id)
}

// SetVectorKey replaces the vector key of an enriched record.
func (r *ScreenshotRepository) SetVectorKey(ctx context.Context, owner string, id core.ID, key string) (*core.Screenshot, error) {
	err := r.execOne(ctx, `UPDATE screenshots SET vector_key = ?, updated_at = ?
		WHERE id = ? AND owner = ? AND vector_key IS NOT NULL`,
		key, time.Now().UTC().UnixMicro(), string(id), owner)
	if err != nil {
		return nil, err
	}
	return r.GetScreenshot(ctx, owner, id)
}

// DeleteScreenshot removes a record.
func (r *ScreenshotRepository) DeleteScreenshot(ctx context.Context, owner string, id core.ID) error {
	return r.execOne(ctx, `DELETE FROM screenshots WHERE id = ? AND owner = ?`, string(id), owner)
}

// ListScreenshots returns the owner's records newest first.
// A limit of zero returns everything after offset.
func (r *ScreenshotRepository) ListScreenshots(ctx context.Context, owner string, offset, limit int) ([]*core.Screenshot, error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidQuery
	}
	if limit == 0 {
		limit = -1 // SQLite: no limit
	}
	return r.query(ctx, `SELECT `+screenshotColumns+` FROM screenshots
		WHERE owner = ?
		ORDER BY captured_at DESC, id DESC
		LIMIT ? OFFSET ?`, owner, limit, offset)
}

// ForEachUnenriched calls fn for every record without enrichment.
func (r *ScreenshotRepository) ForEachUnenriched(ctx context.Context, fn func(s *core.Screenshot) error) error {
	return r.forEach(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE vector_key IS NULL ORDER BY inserted_at`, fn)
}

// ForEachEnriched calls fn for every enriched record.
func (r *ScreenshotRepository) ForEachEnriched(ctx context.Context, fn func(s *core.Screenshot) error) error {
	return r.forEach(ctx, `SELECT `+screenshotColumns+` FROM screenshots WHERE vector_key IS NOT NULL ORDER BY inserted_at`, fn)
}

// forEach loads all matching rows before calling fn, releasing the
// connection so fn can write.
func (r *ScreenshotRepository) forEach(ctx context.Context, query string, fn func(s *core.Screenshot) error) error {
	records, err := r.query(ctx, query)
	if err != nil {
		return err
	}
	for _, s := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *ScreenshotRepository) query(ctx context.Context, query string, args ...any) ([]*core.Screenshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying screenshots: %w", err)
	}
	defer rows.Close()

	var results []*core.Screenshot
	for rows.Next() {
		s, err := scanScreenshot(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// execOne runs a statement that must affect exactly one owned row.
func (r *ScreenshotRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanScreenshot(row scanner) (*core.Screenshot, error) {
	var (
		s                                       core.Screenshot
		id                                      string
		capturedAt, insertedAt, updatedAt       int64
		title, description, tags, markdown, key sql.NullString
	)
	err := row.Scan(&id, &s.Owner, &s.ImageURL, &s.ThumbnailURL, &s.Width, &s.Height, &s.FileSize,
		&s.ContentType, &s.Digest, &capturedAt, &s.Note,
		&title, &description, &tags, &markdown, &key,
		&insertedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Id = core.ID(id)
	s.CapturedAt = time.UnixMicro(capturedAt).UTC()
	s.InsertedAt = time.UnixMicro(insertedAt).UTC()
	s.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	s.Title = nullable(title)
	s.Description = nullable(description)
	s.Markdown = nullable(markdown)
	s.VectorKey = nullable(key)
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &s.Tags); err != nil {
			return nil, fmt.Errorf("%w: tags: %w", storage.ErrSerializationFailed, err)
		}
		if s.Tags == nil {
			s.Tags = []string{}
		}
	}
	return &s, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// encodeTags stores nil tags as NULL and everything else as a JSON array.
func encodeTags(tags []string) (sql.NullString, error) {
	if tags == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("%w: tags: %w", storage.ErrSerializationFailed, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
