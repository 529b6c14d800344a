package migrations

import "embed"

// SQLite embeds the SQL migrations for the SQLite storage layer.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres embeds the SQL migrations for the PostgreSQL storage layer.
//
//go:embed postgres/*.sql
var Postgres embed.FS
