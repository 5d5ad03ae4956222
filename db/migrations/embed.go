// AngelaMos | 2026
// embed.go

// Package migrations embeds the goose SQL migration set applied at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
