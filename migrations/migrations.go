// Package migrations embeds the SQL migration files for the central
// database. Partition-local tables are created by the tenant provisioner,
// not here.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
