package store

import (
	"context"
	"database/sql"
)

// formatVersion is bumped when the on-disk layout changes incompatibly.
const formatVersion = "1"

// Descriptor keys in collection_meta. The dimension is written exactly once
// at creation and checked on every subsequent open.
const (
	metaKeyFormat    = "format_version"
	metaKeyDimension = "dimension"
)

const collectionSchema = `
CREATE TABLE IF NOT EXISTS collection_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    id              TEXT PRIMARY KEY,
    text            TEXT NOT NULL,
    source_ref      TEXT NOT NULL,
    meta            TEXT NOT NULL,
    embedding       BLOB NOT NULL,
    embedding_model TEXT NOT NULL,
    created_at      INTEGER NOT NULL
);
`

// ensureSchema creates the collection tables in the provided database if
// they do not already exist.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, collectionSchema)
	return err
}
