// Package migrations embeds the SQL schema for the state store so the
// binary carries its own migrations without a separate deploy artifact.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
