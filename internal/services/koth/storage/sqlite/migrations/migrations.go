// Package migrations embeds the award journal schema.
package migrations

import "embed"

// FS holds the journal SQL migrations.
//
//go:embed *.sql
var FS embed.FS
