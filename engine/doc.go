// Package engine composes the record model, the durable store and the
// similarity index into the public embedding-store contract: add, add-batch,
// search by vector or by text proxy, delete by id or predicate, size and
// reopen. An Engine is a synchronous, thread-safe shared resource: readers
// run concurrently, writers are serialized, and a reader never observes a
// half-written record.
package engine
