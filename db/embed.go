// Package db provides the embedded database schema and seed catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables. Every
// statement is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCatalog is the default demo catalog in seed JSON format.
//
//go:embed seed/catalog.json
var SeedCatalog []byte
