// Package db embeds the PostgreSQL schema.
package db

import _ "embed"

// Schema creates every table. Statements are idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
