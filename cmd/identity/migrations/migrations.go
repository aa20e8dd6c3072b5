// Package migrations embeds the PostgreSQL schema for the credential store.
package migrations

import "embed"

// Migrations holds the goose SQL files.
//
//go:embed *.sql
var Migrations embed.FS
