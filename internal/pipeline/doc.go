// Package pipeline runs the generation stages against the shared store.
//
// A Runner drives one stage with a pool of workers. Each worker repeatedly
// opens a transaction, claims a batch of pending items with row locks,
// processes them concurrently, applies every success in its own savepoint,
// records failures and commits. Workers stop when nothing of their kind is
// pending any more.
//
// The Orchestrator runs the stages in pipeline order and keeps the progress
// checkpoints current.
package pipeline
