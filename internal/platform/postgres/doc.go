// Package postgres provides PostgreSQL implementations of the store
// interfaces defined in internal/store: paragraphs, questions, answers,
// ratings, authors, checkpoints, aggregate stats and the work claim queue.
//
// All stores work against store.DBTX, so the same code runs on a *sql.DB or
// inside a transaction obtained from store.RunInTransaction. Claims rely on
// FOR UPDATE SKIP LOCKED and therefore only hold while the claiming
// transaction is open.
package postgres
