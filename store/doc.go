// Package store implements the durable collection: a SQLite-backed mapping
// from record id to record that survives process restarts. Every mutation
// commits its own transaction before returning, so a successfully returned
// Put or Remove is visible to a freshly opened collection at the same path.
package store
