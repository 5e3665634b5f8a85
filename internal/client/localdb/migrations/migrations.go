// Package migrations embeds the schema of the on-device cache database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
