package migrations

import "embed"

// FS contains the key/value table migrations.
//
//go:embed *.sql
var FS embed.FS
