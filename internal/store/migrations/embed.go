// Package migrations embeds the SQL schema migrations of the simulated backend store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
