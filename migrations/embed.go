// Package migrations holds the goose SQL migrations of the service.
package migrations

import "embed"

// FS contains every *.sql migration, applied by app.Migrator.
//
//go:embed *.sql
var FS embed.FS
