// Package migrations contains the embedded goose migrations of the server schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
