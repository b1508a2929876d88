package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/embedstore/record"
)

func openTemp(t *testing.T, dimension int, opts Options) (*Collection, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collection.db")
	c, err := Open(context.Background(), path, dimension, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func rec(id string, embedding ...float32) *record.Record {
	return &record.Record{
		ID:        id,
		Text:      "text of " + id,
		SourceRef: "https://example.com/" + id,
		Embedding: embedding,
		CreatedAt: time.Unix(0, time.Now().UnixNano()),
	}
}

func TestOpenCreatesAndReconnects(t *testing.T) {
	ctx := context.Background()
	c, path := openTemp(t, 4, Options{})
	require.NoError(t, c.Put(ctx, rec("a", 1, 0, 0, 0)))
	require.NoError(t, c.Close())

	// Same dimension reconnects and sees the record.
	c2, err := Open(ctx, path, 4, Options{})
	require.NoError(t, err)
	defer c2.Close()
	n, err := c2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A different dimension is refused.
	_, err = Open(ctx, path, 8, Options{})
	var dim *record.ErrDimensionMismatch
	require.ErrorAs(t, err, &dim)
	assert.Equal(t, 4, dim.Expected)
	assert.Equal(t, 8, dim.Actual)
}

func TestOpenPathWithURIMetacharacters(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t,
		"file:/tmp/a%3Fb%23c.db?_pragma=busy_timeout(5000)",
		dsn("/tmp/a?b#c.db"))

	// A '?' or '#' in the file name must not truncate the path or drop the
	// pragma query string: the collection round-trips across reopen.
	path := filepath.Join(t.TempDir(), "odd?collection#1.db")
	c, err := Open(ctx, path, 4, Options{})
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, rec("a", 1, 0, 0, 0)))
	require.NoError(t, c.Close())

	c2, err := Open(ctx, path, 4, Options{})
	require.NoError(t, err)
	defer c2.Close()
	out, found, err := c2.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []float32{1, 0, 0, 0}, out.Embedding)
}

func TestOpenRejectsInvalidDimension(t *testing.T) {
	_, err := Open(context.Background(), MemoryPath, 0, Options{})
	require.Error(t, err)
	_, err = Open(context.Background(), MemoryPath, -3, Options{})
	require.Error(t, err)
}

func TestOpenCorruptedDescriptor(t *testing.T) {
	ctx := context.Background()
	c, path := openTemp(t, 4, Options{})
	require.NoError(t, c.Put(ctx, rec("a", 1, 0, 0, 0)))
	require.NoError(t, c.Close())

	// Drop the descriptor behind the store's back: records without a
	// dimension must read as corruption, not as a fresh collection.
	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM collection_meta`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(ctx, path, 4, Options{})
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestPutRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, path := openTemp(t, 4, Options{})

	in := rec("chunk-1", 0.5, -1, 0, 2)
	in.Metadata = record.NewMetadata("lang", "en", "page", 3)
	in.EmbeddingModel = "all-MiniLM-L6-v2"
	require.NoError(t, c.Put(ctx, in))
	require.NoError(t, c.Close())

	// Durability: a fresh collection at the same path yields the record
	// equal in all fields.
	c2, err := Open(ctx, path, 4, Options{})
	require.NoError(t, err)
	defer c2.Close()

	out, found, err := c2.Get(ctx, "chunk-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Text, out.Text)
	assert.Equal(t, in.SourceRef, out.SourceRef)
	assert.Equal(t, in.Embedding, out.Embedding)
	assert.Equal(t, in.EmbeddingModel, out.EmbeddingModel)
	assert.True(t, in.Metadata.Equal(out.Metadata))
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestPutUpsertReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t, 4, Options{})

	first := rec("a", 1, 0, 0, 0)
	first.Metadata = record.NewMetadata("version", 1)
	require.NoError(t, c.Put(ctx, first))

	second := rec("a", 0, 1, 0, 0)
	second.Text = "replaced"
	require.NoError(t, c.Put(ctx, second))

	out, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "replaced", out.Text)
	assert.Equal(t, []float32{0, 1, 0, 0}, out.Embedding)
	assert.Nil(t, out.Metadata, "old metadata does not survive replacement")

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPutConflictReject(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t, 4, Options{Conflict: ConflictReject})

	require.NoError(t, c.Put(ctx, rec("a", 1, 0, 0, 0)))
	err := c.Put(ctx, rec("a", 0, 1, 0, 0))
	assert.ErrorIs(t, err, ErrDuplicateID)

	out, _, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0}, out.Embedding, "original record untouched")
}

func TestPutAllSingleTransaction(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t, 4, Options{})

	recs := []*record.Record{
		rec("a", 1, 0, 0, 0),
		rec("b", 0, 1, 0, 0),
		rec("c", 0, 0, 1, 0),
	}
	require.NoError(t, c.PutAll(ctx, recs))
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, c.PutAll(ctx, nil), "empty batch is a no-op")
}

func TestRemoveIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t, 4, Options{})
	require.NoError(t, c.Put(ctx, rec("a", 1, 0, 0, 0)))

	removed, err := c.Remove(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Remove(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed, "second removal reports nothing removed")

	removed, err = c.Remove(ctx, "never-existed")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRemoveWhere(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t, 4, Options{})

	blocked := []string{"x1", "x2", "x3"}
	for _, id := range blocked {
		r := rec(id, 1, 0, 0, 0)
		r.SourceRef = "https://blocked.example/" + id
		require.NoError(t, c.Put(ctx, r))
	}
	require.NoError(t, c.Put(ctx, rec("keep1", 0, 1, 0, 0)))
	require.NoError(t, c.Put(ctx, rec("keep2", 0, 0, 1, 0)))

	ids, err := c.RemoveWhere(ctx, record.Predicate{SourceContains: "blocked.example"})
	require.NoError(t, err)
	assert.ElementsMatch(t, blocked, ids)

	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Non-matching predicate removes nothing and is not an error.
	ids, err = c.RemoveWhere(ctx, record.Predicate{SourceContains: "no-such-host"})
	require.NoError(t, err)
	assert.Empty(t, ids)

	// The zero predicate matches nothing by design.
	ids, err = c.RemoveWhere(ctx, record.Predicate{})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAllOrderedByID(t *testing.T) {
	ctx := context.Background()
	c, _ := openTemp(t, 4, Options{})
	for _, id := range []string{"delta", "alpha", "charlie"} {
		require.NoError(t, c.Put(ctx, rec(id, 1, 0, 0, 0)))
	}
	recs, err := c.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "alpha", recs[0].ID)
	assert.Equal(t, "charlie", recs[1].ID)
	assert.Equal(t, "delta", recs[2].ID)
}

func TestCloseIdempotent(t *testing.T) {
	c, _ := openTemp(t, 4, Options{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
