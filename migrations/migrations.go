// Package migrations embeds the SQL schema migrations applied by cmd/migrate
// and by database tests.
package migrations

import "embed"

// FS holds every *.sql migration in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
