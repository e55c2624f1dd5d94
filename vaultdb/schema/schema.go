// Package schema provides a declarative metadata model for the database
// schema, a live-database inspector, and the autogeneration machinery that
// diffs the two and emits migration source files.
package schema

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Schema is the declared metadata of a database schema.
type Schema struct {
	Name   string
	Tables []*Table
}

// Table is the declared metadata of a table.
type Table struct {
	Name        string
	Columns     []*Column
	Indexes     []*Index
	ForeignKeys []*ForeignKey
}

// Column is the declared metadata of a column. Type uses PostgreSQL type
// names, compared case-insensitively with common aliases resolved (int8 and
// bigint are the same type).
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	Default    string
	PrimaryKey bool
}

// Index is the declared metadata of an index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey is the declared metadata of a foreign key constraint.
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
}

// Table returns the declared table with the given name, nil when not found.
func (s *Schema) Table(name string) *Table {
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Column returns the declared column with the given name, nil when not
// found.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Index returns the declared index with the given name, nil when not found.
func (t *Table) Index(name string) *Index {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx
		}
	}
	return nil
}

// PrimaryKey returns the names of the primary key columns in declaration
// order.
func (t *Table) PrimaryKey() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Validate checks the declared metadata for internal consistency, reporting
// all problems found.
func (s *Schema) Validate() error {
	var result *multierror.Error

	if s.Name == "" {
		result = multierror.Append(result, fmt.Errorf("schema has no name"))
	}

	tables := make(map[string]bool)
	indexes := make(map[string]string)

	for _, t := range s.Tables {
		if tables[t.Name] {
			result = multierror.Append(result, fmt.Errorf("duplicate table %q", t.Name))
		}
		tables[t.Name] = true

		if len(t.Columns) == 0 {
			result = multierror.Append(result, fmt.Errorf("table %q has no columns", t.Name))
			continue
		}

		columns := make(map[string]bool)
		for _, c := range t.Columns {
			if columns[c.Name] {
				result = multierror.Append(result, fmt.Errorf("duplicate column %q on table %q", c.Name, t.Name))
			}
			columns[c.Name] = true

			if c.Type == "" {
				result = multierror.Append(result, fmt.Errorf("column %q on table %q has no type", c.Name, t.Name))
			}
			if c.PrimaryKey && c.Nullable {
				result = multierror.Append(result, fmt.Errorf("primary key column %q on table %q cannot be nullable", c.Name, t.Name))
			}
		}

		if len(t.PrimaryKey()) == 0 {
			result = multierror.Append(result, fmt.Errorf("table %q has no primary key", t.Name))
		}

		for _, idx := range t.Indexes {
			// Index names share a namespace with tables in PostgreSQL, so
			// they must be unique across the whole schema.
			if other, ok := indexes[idx.Name]; ok {
				result = multierror.Append(result, fmt.Errorf("duplicate index %q on tables %q and %q", idx.Name, other, t.Name))
			}
			indexes[idx.Name] = t.Name

			if len(idx.Columns) == 0 {
				result = multierror.Append(result, fmt.Errorf("index %q on table %q has no columns", idx.Name, t.Name))
			}
			for _, col := range idx.Columns {
				if t.Column(col) == nil {
					result = multierror.Append(result, fmt.Errorf("index %q references unknown column %q on table %q", idx.Name, col, t.Name))
				}
			}
		}

		for _, fk := range t.ForeignKeys {
			if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) {
				result = multierror.Append(result, fmt.Errorf("foreign key %q on table %q has mismatched column lists", fk.Name, t.Name))
			}
			for _, col := range fk.Columns {
				if t.Column(col) == nil {
					result = multierror.Append(result, fmt.Errorf("foreign key %q references unknown column %q on table %q", fk.Name, col, t.Name))
				}
			}
			if s.Table(fk.RefTable) == nil {
				result = multierror.Append(result, fmt.Errorf("foreign key %q on table %q references unknown table %q", fk.Name, t.Name, fk.RefTable))
			}
		}
	}

	return result.ErrorOrNil()
}

// typeAliases maps PostgreSQL type aliases to their canonical names.
var typeAliases = map[string]string{
	"INT8":        "BIGINT",
	"INT":         "INTEGER",
	"INT4":        "INTEGER",
	"INT2":        "SMALLINT",
	"BOOL":        "BOOLEAN",
	"FLOAT8":      "DOUBLE PRECISION",
	"FLOAT4":      "REAL",
	"TIMESTAMPTZ": "TIMESTAMP WITH TIME ZONE",
	"TIMESTAMP":   "TIMESTAMP WITHOUT TIME ZONE",
	"VARCHAR":     "CHARACTER VARYING",
}

// normalizeType resolves a type name to its canonical uppercase form, so
// that declared and inspected types compare equal regardless of the alias
// used.
func normalizeType(t string) string {
	n := strings.ToUpper(strings.Join(strings.Fields(t), " "))
	if canonical, ok := typeAliases[n]; ok {
		return canonical
	}
	return n
}
