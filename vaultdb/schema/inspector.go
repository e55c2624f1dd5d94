package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gitlab.com/mediavault/vaultdb/vaultdb/datastore"
	"gitlab.com/mediavault/vaultdb/vaultdb/datastore/metrics"
)

// inspectedSchemaName is the database schema the inspector reads.
const inspectedSchemaName = "public"

// migrationTableName is excluded from inspection, it belongs to the
// migration tool rather than the application schema.
const migrationTableName = "schema_migrations"

// Inspector reads the live schema of a database into the metadata model.
type Inspector struct {
	db datastore.Queryer
}

// NewInspector builds a new schema inspector.
func NewInspector(db datastore.Queryer) *Inspector {
	return &Inspector{db: db}
}

// Inspect reads the tables, columns, indexes and foreign keys of the public
// schema.
func (i *Inspector) Inspect(ctx context.Context) (*Schema, error) {
	s := &Schema{Name: inspectedSchemaName}

	if err := i.inspectTables(ctx, s); err != nil {
		return nil, err
	}
	if err := i.inspectColumns(ctx, s); err != nil {
		return nil, err
	}
	if err := i.inspectPrimaryKeys(ctx, s); err != nil {
		return nil, err
	}
	if err := i.inspectIndexes(ctx, s); err != nil {
		return nil, err
	}
	if err := i.inspectForeignKeys(ctx, s); err != nil {
		return nil, err
	}

	return s, nil
}

func (i *Inspector) inspectTables(ctx context.Context, s *Schema) error {
	defer metrics.InstrumentQuery("schema_inspect_tables")()
	q := `SELECT
			table_name
		FROM
			information_schema.tables
		WHERE
			table_schema = $1
			AND table_type = 'BASE TABLE'
			AND table_name <> $2
		ORDER BY
			table_name`

	rows, err := i.db.QueryContext(ctx, q, inspectedSchemaName, migrationTableName)
	if err != nil {
		return fmt.Errorf("inspecting tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := new(Table)
		if err := rows.Scan(&t.Name); err != nil {
			return fmt.Errorf("scanning table row: %w", err)
		}
		s.Tables = append(s.Tables, t)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanning tables: %w", err)
	}

	return nil
}

func (i *Inspector) inspectColumns(ctx context.Context, s *Schema) error {
	defer metrics.InstrumentQuery("schema_inspect_columns")()
	q := `SELECT
			table_name,
			column_name,
			data_type,
			is_nullable,
			COALESCE(column_default, '')
		FROM
			information_schema.columns
		WHERE
			table_schema = $1
		ORDER BY
			table_name,
			ordinal_position`

	rows, err := i.db.QueryContext(ctx, q, inspectedSchemaName)
	if err != nil {
		return fmt.Errorf("inspecting columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, nullable string
		c := new(Column)
		if err := rows.Scan(&tableName, &c.Name, &c.Type, &nullable, &c.Default); err != nil {
			return fmt.Errorf("scanning column row: %w", err)
		}
		c.Nullable = nullable == "YES"

		t := s.Table(tableName)
		if t == nil {
			// Filtered table, e.g. the migration tracking table.
			continue
		}
		t.Columns = append(t.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanning columns: %w", err)
	}

	return nil
}

func (i *Inspector) inspectPrimaryKeys(ctx context.Context, s *Schema) error {
	defer metrics.InstrumentQuery("schema_inspect_primary_keys")()
	q := `SELECT
			kcu.table_name,
			kcu.column_name
		FROM
			information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
		WHERE
			tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = $1
		ORDER BY
			kcu.table_name,
			kcu.ordinal_position`

	rows, err := i.db.QueryContext(ctx, q, inspectedSchemaName)
	if err != nil {
		return fmt.Errorf("inspecting primary keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return fmt.Errorf("scanning primary key row: %w", err)
		}

		t := s.Table(tableName)
		if t == nil {
			continue
		}
		if c := t.Column(columnName); c != nil {
			c.PrimaryKey = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanning primary keys: %w", err)
	}

	return nil
}

func (i *Inspector) inspectIndexes(ctx context.Context, s *Schema) error {
	defer metrics.InstrumentQuery("schema_inspect_indexes")()
	// Indexes backing constraints (primary keys, unique constraints) are
	// owned by their constraint and excluded here.
	q := `SELECT
			tablename,
			indexname,
			indexdef
		FROM
			pg_indexes
		WHERE
			schemaname = $1
			AND indexname NOT IN (
				SELECT
					conname
				FROM
					pg_constraint)
		ORDER BY
			indexname`

	rows, err := i.db.QueryContext(ctx, q, inspectedSchemaName)
	if err != nil {
		return fmt.Errorf("inspecting indexes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, indexName, indexDef string
		if err := rows.Scan(&tableName, &indexName, &indexDef); err != nil {
			return fmt.Errorf("scanning index row: %w", err)
		}

		t := s.Table(tableName)
		if t == nil {
			continue
		}

		idx, err := parseIndexDef(indexName, indexDef)
		if err != nil {
			return err
		}
		t.Indexes = append(t.Indexes, idx)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanning indexes: %w", err)
	}

	return nil
}

func (i *Inspector) inspectForeignKeys(ctx context.Context, s *Schema) error {
	defer metrics.InstrumentQuery("schema_inspect_foreign_keys")()
	q := `SELECT
			tc.table_name,
			tc.constraint_name,
			kcu.column_name,
			ccu.table_name,
			ccu.column_name
		FROM
			information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
			JOIN information_schema.constraint_column_usage ccu ON tc.constraint_name = ccu.constraint_name
				AND tc.table_schema = ccu.table_schema
		WHERE
			tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
		ORDER BY
			tc.constraint_name,
			kcu.ordinal_position`

	rows, err := i.db.QueryContext(ctx, q, inspectedSchemaName)
	if err != nil {
		return fmt.Errorf("inspecting foreign keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tableName, constraintName, columnName, refTable, refColumn string
		if err := rows.Scan(&tableName, &constraintName, &columnName, &refTable, &refColumn); err != nil {
			return fmt.Errorf("scanning foreign key row: %w", err)
		}

		t := s.Table(tableName)
		if t == nil {
			continue
		}

		var fk *ForeignKey
		for _, existing := range t.ForeignKeys {
			if existing.Name == constraintName {
				fk = existing
				break
			}
		}
		if fk == nil {
			fk = &ForeignKey{Name: constraintName, RefTable: refTable}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}

		fk.Columns = append(fk.Columns, columnName)
		fk.RefColumns = append(fk.RefColumns, refColumn)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scanning foreign keys: %w", err)
	}

	return nil
}

var indexColumnsPattern = regexp.MustCompile(`\((.+)\)$`)

// parseIndexDef extracts the uniqueness and column list of an index from its
// pg_indexes definition, e.g.
//
//	CREATE INDEX idx ON public.t USING btree (a, b DESC)
func parseIndexDef(name, def string) (*Index, error) {
	m := indexColumnsPattern.FindStringSubmatch(def)
	if m == nil {
		return nil, fmt.Errorf("unparsable definition for index %q: %q", name, def)
	}

	// Expression indexes carry nested parentheses in the column list and
	// cannot be represented in the metadata model.
	if strings.ContainsAny(m[1], "()") {
		return nil, fmt.Errorf("unparsable definition for index %q: %q", name, def)
	}

	var cols []string
	for _, raw := range strings.Split(m[1], ",") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			return nil, fmt.Errorf("unparsable definition for index %q: %q", name, def)
		}
		// Ordering and null placement modifiers are dropped, only the
		// column name matters for comparison.
		cols = append(cols, fields[0])
	}

	return &Index{
		Name:    name,
		Columns: cols,
		Unique:  strings.HasPrefix(def, "CREATE UNIQUE INDEX"),
	}, nil
}
