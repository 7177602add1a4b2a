// Package migrations embeds the SQL schema migrations for the call archive.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
