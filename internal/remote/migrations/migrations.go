// Package migrations embeds the schema of the remote document store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
