// Package migrations embeds the SQL migration files for the PostgreSQL
// folder backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
