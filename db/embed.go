// Package db embeds SQL migrations applied at service start.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
