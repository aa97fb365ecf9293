package db

import "embed"

// MigrationFS embeds the SQL schema for consumed tokens, sessions, service states and the audit chain.
// cmd/migrate applies it through golang-migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
