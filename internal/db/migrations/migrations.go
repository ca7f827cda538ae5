// Package migrations embeds the ordered SQL migration files applied by goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
