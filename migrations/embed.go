// Package migrations embeds the ledger schema migrations so the server and
// tests can apply them without a migrations directory on disk.
package migrations

import "embed"

// FS holds the numbered *.up.sql / *.down.sql pairs
//
//go:embed *.sql
var FS embed.FS
