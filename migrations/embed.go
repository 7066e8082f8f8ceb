// Package migrations embeds the SQL schema applied at startup.
package migrations

import "embed"

// FS holds every goose migration in this directory.
//
//go:embed *.sql
var FS embed.FS
