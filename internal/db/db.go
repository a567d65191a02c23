// Package db holds the embedded schema migrations for the routing backend.
package db

import "embed"

// Migrations contains the goose SQL migrations, rooted at MigrationsDir.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads.
const MigrationsDir = "migrations"
