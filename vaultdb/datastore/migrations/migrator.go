package migrations

import (
	"database/sql"
	"fmt"
	"time"

	migrate "github.com/rubenv/sql-migrate"
)

const (
	dialect = "postgres"

	// migrationTableName is the name of the table where sql-migrate keeps
	// track of applied migrations.
	migrationTableName = "schema_migrations"
)

// Migrator applies and reverts the known migrations on a database.
type Migrator struct {
	db         *sql.DB
	migrations []*Migration
}

// MigratorOption enables the creation of functional options for the
// configuration of a migrator.
type MigratorOption func(m *Migrator)

// SkipPostDeployment removes post-deployment migrations from the set the
// migrator plans and applies.
func SkipPostDeployment(m *Migrator) {
	mm := make([]*Migration, 0, len(m.migrations))
	for _, migration := range m.migrations {
		if !migration.PostDeployment {
			mm = append(mm, migration)
		}
	}
	m.migrations = mm
}

// NewMigrator builds a new migrator for a database. Applied migrations
// missing from the source are tolerated, so that planning keeps working with
// a filtered source (SkipPostDeployment) or against a database migrated by a
// newer build.
func NewMigrator(db *sql.DB, opts ...MigratorOption) *Migrator {
	migrate.SetTable(migrationTableName)
	migrate.SetIgnoreUnknown(true)

	m := &Migrator{db: db, migrations: all()}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Migrator) source() *migrate.MemoryMigrationSource {
	mm := make([]*migrate.Migration, 0, len(m.migrations))
	for _, migration := range m.migrations {
		mm = append(mm, migration.Migration)
	}
	return &migrate.MemoryMigrationSource{Migrations: mm}
}

// Version returns the id of the most recently applied migration, or an empty
// string when none was applied.
func (m *Migrator) Version() (string, error) {
	records, err := migrate.GetMigrationRecords(m.db, dialect)
	if err != nil {
		return "", fmt.Errorf("reading applied migrations: %w", err)
	}

	return latestVersion(records), nil
}

func latestVersion(records []*migrate.MigrationRecord) string {
	var v string
	for _, r := range records {
		if r.Id > v {
			v = r.Id
		}
	}
	return v
}

// StatusRecord is the status of a single migration.
type StatusRecord struct {
	// AppliedAt is the time at which the migration was applied, nil when
	// pending.
	AppliedAt *time.Time

	// Unknown marks migrations found on the database but not known to this
	// binary, e.g. when running an older build against a newer database.
	Unknown bool

	PostDeployment bool
}

// Status returns the status of all known and applied migrations, keyed by
// migration id.
func (m *Migrator) Status() (map[string]*StatusRecord, error) {
	records, err := migrate.GetMigrationRecords(m.db, dialect)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	return statuses(m.migrations, records), nil
}

func statuses(known []*Migration, records []*migrate.MigrationRecord) map[string]*StatusRecord {
	ss := make(map[string]*StatusRecord, len(known))
	for _, migration := range known {
		ss[migration.Id] = &StatusRecord{PostDeployment: migration.PostDeployment}
	}

	for _, r := range records {
		if s, ok := ss[r.Id]; ok {
			appliedAt := r.AppliedAt
			s.AppliedAt = &appliedAt
			continue
		}
		appliedAt := r.AppliedAt
		ss[r.Id] = &StatusRecord{AppliedAt: &appliedAt, Unknown: true}
	}

	return ss
}

// UpN applies up to n pending migrations in ascending id order. A limit of 0
// applies all of them. Returns the number of applied migrations.
func (m *Migrator) UpN(n int) (int, error) {
	return migrate.ExecMax(m.db, dialect, m.source(), migrate.Up, n)
}

// UpNPlan returns the ids of the migrations that UpN would apply, without
// changing the database.
func (m *Migrator) UpNPlan(n int) ([]string, error) {
	return m.plan(migrate.Up, n)
}

// DownN reverts up to n applied migrations in descending id order. A limit
// of 0 reverts all of them. Returns the number of reverted migrations.
func (m *Migrator) DownN(n int) (int, error) {
	return migrate.ExecMax(m.db, dialect, m.source(), migrate.Down, n)
}

// DownNPlan returns the ids of the migrations that DownN would revert,
// without changing the database.
func (m *Migrator) DownNPlan(n int) ([]string, error) {
	return m.plan(migrate.Down, n)
}

func (m *Migrator) plan(dir migrate.MigrationDirection, n int) ([]string, error) {
	planned, _, err := migrate.PlanMigration(m.db, dialect, m.source(), dir, n)
	if err != nil {
		return nil, fmt.Errorf("planning migrations: %w", err)
	}

	ids := make([]string, 0, len(planned))
	for _, migration := range planned {
		ids = append(ids, migration.Id)
	}

	return ids, nil
}

// HasPending determines whether all known migrations are applied or not.
func (m *Migrator) HasPending() (bool, error) {
	planned, err := m.UpNPlan(0)
	if err != nil {
		return false, err
	}

	return len(planned) > 0, nil
}
