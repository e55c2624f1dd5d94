// Package migrations holds the versioned schema migrations of the vault
// metadata database and the migrator that applies them. Each migration lives
// in its own source file, named after its id, and registers itself on
// package initialization.
package migrations

import (
	"sort"

	migrate "github.com/rubenv/sql-migrate"
)

// Migration is a schema migration. It wraps a sql-migrate migration and adds
// the post-deployment attribute.
type Migration struct {
	*migrate.Migration

	// PostDeployment marks migrations that do not have to run before the
	// application starts, such as concurrent index builds on large tables.
	// These are skipped when the migrator is created with the
	// SkipPostDeployment option.
	PostDeployment bool
}

var allMigrations []*Migration

// all returns all known migrations sorted by id.
func all() []*Migration {
	mm := make([]*Migration, len(allMigrations))
	copy(mm, allMigrations)
	sort.Slice(mm, func(i, j int) bool { return mm[i].Id < mm[j].Id })
	return mm
}
