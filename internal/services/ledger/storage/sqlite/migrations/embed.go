package migrations

import "embed"

//go:embed ledger/*.sql
var LedgerFS embed.FS
