// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the pipeline's core logic. The work queue contract in particular relies on
// row-level locking with skip-locked claims, which the Postgres
// implementation provides.
package store
