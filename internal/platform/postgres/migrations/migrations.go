// Package migrations embeds the goose SQL migrations for the qagen schema so
// that the CLI and integration tests apply the same files without relying on
// the working directory.
package migrations

import "embed"

// FS holds every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
