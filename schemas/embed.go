// Package schemas embeds the SQL migrations for the dictionary store.
package schemas

import "embed"

// Migrations holds migrations/*.sql. They are applied in lexical file order
// and must be safe to re-run.
//
//go:embed migrations/*.sql
var Migrations embed.FS
