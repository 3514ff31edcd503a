// Package db embeds the SQL schema migrations
package db

import "embed"

// Migrations holds the golang-migrate files under migrations/
//
//go:embed migrations/*.sql
var Migrations embed.FS
