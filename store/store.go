package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/viant/embedstore/record"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

const driverName = "sqlite"

// MemoryPath opens the collection in memory instead of on disk. Useful for
// tests and ephemeral collections; no durability across Close.
const MemoryPath = ":memory:"

var (
	// ErrCorrupted indicates that the storage path holds data that is not a
	// readable collection (records without a dimension descriptor, a garbled
	// descriptor, or an unknown format version). Open fails rather than
	// silently discarding data.
	ErrCorrupted = errors.New("store: corrupted collection")

	// ErrDuplicateID is returned by Put under ConflictReject when the id is
	// already present.
	ErrDuplicateID = errors.New("store: duplicate id")
)

// ConflictPolicy selects what Put does when the id already exists.
type ConflictPolicy int

const (
	// ConflictUpsert replaces the existing record entirely. This is the
	// default: re-ingesting a refreshed chunk under the same id is the
	// common flow.
	ConflictUpsert ConflictPolicy = iota

	// ConflictReject fails the operation with ErrDuplicateID.
	ConflictReject
)

// Options configures collection behavior fixed at open time.
type Options struct {
	// Conflict selects upsert-or-reject behavior for duplicate ids.
	Conflict ConflictPolicy
}

// Collection is a durable id -> record mapping on a single SQLite database.
// Methods are safe for use from multiple goroutines only to the extent
// database/sql is; the engine layers snapshot-consistent locking on top.
type Collection struct {
	db        *sql.DB
	dimension int
	conflict  ConflictPolicy
}

// Open opens or creates a collection rooted at path. An existing collection
// is reconnected and must have been created with the same dimension;
// otherwise Open fails with *record.ErrDimensionMismatch. A path holding
// records without a valid dimension descriptor fails with ErrCorrupted.
func Open(ctx context.Context, path string, dimension int, opts Options) (*Collection, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("store: invalid dimension %d", dimension)
	}
	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single pooled connection keeps :memory: databases coherent and
	// serializes writers below the engine lock.
	db.SetMaxOpenConns(1)

	c := &Collection{db: db, dimension: dimension, conflict: opts.Conflict}
	if err := c.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// dsn builds the file: URI for the driver. The path is percent-escaped so
// names containing URI metacharacters like '?' or '#' do not truncate the
// path or swallow the pragma query string; SQLite decodes the escapes when
// it opens the file.
func dsn(path string) string {
	if path == MemoryPath {
		return path
	}
	escaped := (&url.URL{Path: path}).EscapedPath()
	return "file:" + escaped + "?_pragma=busy_timeout(5000)"
}

// init creates the schema on first use and cross-checks the stored
// dimension descriptor on reconnection.
func (c *Collection) init(ctx context.Context) error {
	if err := ensureSchema(ctx, c.db); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}

	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM collection_meta WHERE key = ?`, metaKeyDimension).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return c.create(ctx)
	case err != nil:
		return fmt.Errorf("store: read dimension descriptor: %w", err)
	}

	stored, convErr := strconv.Atoi(raw)
	if convErr != nil || stored <= 0 {
		return fmt.Errorf("%w: invalid dimension descriptor %q", ErrCorrupted, raw)
	}
	if stored != c.dimension {
		return &record.ErrDimensionMismatch{Expected: stored, Actual: c.dimension}
	}

	var format string
	if err := c.db.QueryRowContext(ctx,
		`SELECT value FROM collection_meta WHERE key = ?`, metaKeyFormat).Scan(&format); err != nil {
		return fmt.Errorf("%w: missing format version", ErrCorrupted)
	}
	if format != formatVersion {
		return fmt.Errorf("%w: unsupported format version %q", ErrCorrupted, format)
	}
	return nil
}

// create writes the one-time descriptor. A database that already holds
// records but lost its descriptor is corrupted, not new.
func (c *Collection) create(ctx context.Context) error {
	n, err := c.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d records without a dimension descriptor", ErrCorrupted, n)
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: create descriptor: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt := `INSERT INTO collection_meta(key, value) VALUES(?, ?)`
	if _, err := tx.ExecContext(ctx, stmt, metaKeyFormat, formatVersion); err != nil {
		return fmt.Errorf("store: create descriptor: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmt, metaKeyDimension, strconv.Itoa(c.dimension)); err != nil {
		return fmt.Errorf("store: create descriptor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: create descriptor: %w", err)
	}
	return nil
}

// Dimension returns the fixed embedding dimension of the collection.
func (c *Collection) Dimension() int { return c.dimension }

// Conflict returns the duplicate-id policy the collection was opened with.
func (c *Collection) Conflict() ConflictPolicy { return c.conflict }

// Close releases the underlying database. It is idempotent.
func (c *Collection) Close() error { return c.db.Close() }

const upsertStmt = `
INSERT INTO records(id, text, source_ref, meta, embedding, embedding_model, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  text = excluded.text,
  source_ref = excluded.source_ref,
  meta = excluded.meta,
  embedding = excluded.embedding,
  embedding_model = excluded.embedding_model,
  created_at = excluded.created_at`

const insertStmt = `
INSERT INTO records(id, text, source_ref, meta, embedding, embedding_model, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`

// Put stores the record under its id, applying the collection's conflict
// policy, and commits before returning. Callers are expected to have
// validated the record.
func (c *Collection) Put(ctx context.Context, r *record.Record) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", r.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := putTx(ctx, tx, r, c.conflict); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: put %s: %w", r.ID, err)
	}
	return nil
}

// PutAll stores all records in a single transaction: one commit, one flush,
// regardless of batch size. Under ConflictReject the first duplicate fails
// the whole call and nothing is written.
func (c *Collection) PutAll(ctx context.Context, recs []*record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: put batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range recs {
		if err := putTx(ctx, tx, r, c.conflict); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: put batch: %w", err)
	}
	return nil
}

func putTx(ctx context.Context, tx *sql.Tx, r *record.Record, policy ConflictPolicy) error {
	meta := []byte("{}")
	if r.Metadata.Len() > 0 {
		var err error
		if meta, err = json.Marshal(r.Metadata); err != nil {
			return fmt.Errorf("store: encode metadata for %s: %w", r.ID, err)
		}
	}
	blob := record.EncodeEmbedding(r.Embedding)
	args := []any{r.ID, r.Text, r.SourceRef, string(meta), blob, r.EmbeddingModel, r.CreatedAt.UnixNano()}

	if policy == ConflictReject {
		res, err := tx.ExecContext(ctx, insertStmt, args...)
		if err != nil {
			return fmt.Errorf("store: put %s: %w", r.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: put %s: %w", r.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx, upsertStmt, args...); err != nil {
		return fmt.Errorf("store: put %s: %w", r.ID, err)
	}
	return nil
}

const selectColumns = `id, text, source_ref, meta, embedding, embedding_model, created_at`

// Get returns the record stored under id, or found=false when absent.
func (c *Collection) Get(ctx context.Context, id string) (*record.Record, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM records WHERE id = ?`, id)
	r, err := c.scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %s: %w", id, err)
	}
	return r, true, nil
}

// Remove deletes the record stored under id and reports whether one
// existed. Removing an absent id is not an error.
func (c *Collection) Remove(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: remove %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: remove %s: %w", id, err)
	}
	return n > 0, nil
}

// RemoveWhere deletes every record matching the predicate and returns the
// ids removed, so callers can evict derived state. A predicate matching
// nothing (including the zero predicate) removes nothing and is not an
// error. The scan and the deletes share one transaction, so the result is
// consistent.
func (c *Collection) RemoveWhere(ctx context.Context, pred record.Predicate) ([]string, error) {
	if pred.IsZero() {
		return nil, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: remove where: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT `+selectColumns+` FROM records`)
	if err != nil {
		return nil, fmt.Errorf("store: remove where: %w", err)
	}
	var matched []string
	for rows.Next() {
		r, err := c.scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("store: remove where: %w", err)
		}
		if pred.Matches(r) {
			matched = append(matched, r.ID)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("store: remove where: %w", err)
	}
	_ = rows.Close()

	for _, id := range matched {
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
			return nil, fmt.Errorf("store: remove where %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: remove where: %w", err)
	}
	return matched, nil
}

// Count returns the number of live records.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// All returns every live record ordered by id. The result is a materialized
// snapshot; the engine exposes it as a lazy iterator.
func (c *Collection) All(ctx context.Context) ([]*record.Record, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: all: %w", err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		r, err := c.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: all: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: all: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (c *Collection) scanRecord(row rowScanner) (*record.Record, error) {
	var (
		r         record.Record
		meta      string
		blob      []byte
		createdAt int64
	)
	if err := row.Scan(&r.ID, &r.Text, &r.SourceRef, &meta, &blob, &r.EmbeddingModel, &createdAt); err != nil {
		return nil, err
	}
	m := &record.Metadata{}
	if err := json.Unmarshal([]byte(meta), m); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
	}
	if m.Len() > 0 {
		r.Metadata = m
	}
	embedding, err := record.DecodeEmbedding(blob, c.dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, r.ID, err)
	}
	r.Embedding = embedding
	r.CreatedAt = time.Unix(0, createdAt)
	return &r, nil
}
