package database

import "embed"

// EmbeddedMigrations holds the SQL migrations compiled into the binary.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
