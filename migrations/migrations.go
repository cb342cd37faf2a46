// Package migrations embeds the SQL schema for the postgres cart storage driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
