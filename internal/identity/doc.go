// Package identity resolves authors (model plus canonical prompt, or a human
// username) to stable database ids, creating them on first use.
//
// Concurrent resolvers in one or many processes converge on a single row per
// identity: the store's unique hash constraint decides races, and the loser
// re-reads the winner's id.
package identity
