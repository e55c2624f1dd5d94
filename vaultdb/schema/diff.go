package schema

import (
	"fmt"
	"strings"
)

// Plan is the outcome of diffing a declared schema against a live one. The
// up statements bring the live schema in line with the declaration; the
// revert statements undo them. Warnings report differences that are not
// autogenerated, either because they are unsafe or because they fall outside
// the tool's scope.
type Plan struct {
	Statements []string
	Revert     []string
	Warnings   []string
}

// Empty determines whether the plan contains any schema changes.
func (p *Plan) Empty() bool {
	return len(p.Statements) == 0
}

func (p *Plan) change(up, down string) {
	p.Statements = append(p.Statements, up)
	p.Revert = append(p.Revert, down)
}

func (p *Plan) warn(format string, args ...interface{}) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Diff compares a declared schema against a live one and produces the plan
// that brings the live schema in line with the declaration.
//
// Tables present on the database but absent from the declaration are never
// dropped, only reported as warnings. Column type changes are out of scope
// and reported as warnings as well. Column defaults are not compared.
func Diff(declared, live *Schema) *Plan {
	p := new(Plan)

	var newTables []*Table
	for _, t := range declared.Tables {
		if live.Table(t.Name) == nil {
			newTables = append(newTables, t)
		}
	}

	// Tables first, then indexes, then foreign keys, so that constraints
	// never reference an object that does not exist yet.
	for _, t := range newTables {
		p.change(renderCreateTable(t), fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", t.Name))
	}
	for _, t := range newTables {
		for _, idx := range t.Indexes {
			p.change(renderCreateIndex(t.Name, idx), renderDropIndex(idx))
		}
	}

	for _, t := range declared.Tables {
		lt := live.Table(t.Name)
		if lt == nil {
			continue
		}
		p.diffTable(t, lt)
	}

	for _, t := range newTables {
		for _, fk := range t.ForeignKeys {
			p.change(renderAddForeignKey(t.Name, fk), renderDropConstraint(t.Name, fk.Name))
		}
	}

	for _, lt := range live.Tables {
		if declared.Table(lt.Name) == nil {
			p.warn("table %q exists on the database but is not declared, leaving it in place", lt.Name)
		}
	}

	// Revert statements undo the changes in reverse order.
	for i, j := 0, len(p.Revert)-1; i < j; i, j = i+1, j-1 {
		p.Revert[i], p.Revert[j] = p.Revert[j], p.Revert[i]
	}

	return p
}

func (p *Plan) diffTable(declared, live *Table) {
	for _, c := range declared.Columns {
		lc := live.Column(c.Name)
		if lc == nil {
			p.change(
				fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", declared.Name, renderColumn(c)),
				fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", declared.Name, c.Name),
			)
			continue
		}

		if normalizeType(c.Type) != normalizeType(lc.Type) {
			p.warn("column %q on table %q has type %q on the database but %q is declared, type changes are not autogenerated",
				c.Name, declared.Name, lc.Type, c.Type)
		}

		if c.Nullable != lc.Nullable {
			if c.Nullable {
				p.change(
					fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", declared.Name, c.Name),
					fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", declared.Name, c.Name),
				)
			} else {
				p.change(
					fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", declared.Name, c.Name),
					fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", declared.Name, c.Name),
				)
			}
		}
	}

	for _, lc := range live.Columns {
		if declared.Column(lc.Name) != nil {
			continue
		}
		p.warn("dropping column %q on table %q discards its data", lc.Name, declared.Name)
		p.change(
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s", declared.Name, lc.Name),
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s", declared.Name, renderColumn(lc)),
		)
	}

	for _, idx := range declared.Indexes {
		lidx := live.Index(idx.Name)
		if lidx == nil {
			p.change(renderCreateIndex(declared.Name, idx), renderDropIndex(idx))
			continue
		}
		if !sameIndex(idx, lidx) {
			p.change(renderDropIndex(lidx), renderCreateIndex(declared.Name, lidx))
			p.change(renderCreateIndex(declared.Name, idx), renderDropIndex(idx))
		}
	}
	for _, lidx := range live.Indexes {
		if declared.Index(lidx.Name) != nil {
			continue
		}
		p.change(renderDropIndex(lidx), renderCreateIndex(declared.Name, lidx))
	}

	for _, fk := range declared.ForeignKeys {
		if !hasForeignKey(live, fk.Name) {
			p.change(renderAddForeignKey(declared.Name, fk), renderDropConstraint(declared.Name, fk.Name))
		}
	}
	for _, lfk := range live.ForeignKeys {
		if !hasForeignKey(declared, lfk.Name) {
			p.change(renderDropConstraint(declared.Name, lfk.Name), renderAddForeignKey(declared.Name, lfk))
		}
	}
}

func sameIndex(a, b *Index) bool {
	if a.Unique != b.Unique || len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

func hasForeignKey(t *Table, name string) bool {
	for _, fk := range t.ForeignKeys {
		if fk.Name == name {
			return true
		}
	}
	return false
}

func renderColumn(c *Column) string {
	def := c.Name + " " + c.Type
	if !c.Nullable && !c.PrimaryKey {
		def += " NOT NULL"
	}
	if c.Default != "" {
		def += " DEFAULT " + c.Default
	}
	return def
}

func renderCreateTable(t *Table) string {
	var defs []string
	for _, c := range t.Columns {
		defs = append(defs, "\t"+renderColumn(c))
	}
	if pk := t.PrimaryKey(); len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("\tCONSTRAINT pk_%s PRIMARY KEY (%s)", t.Name, strings.Join(pk, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.Name, strings.Join(defs, ",\n"))
}

func renderCreateIndex(table string, idx *Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s USING btree (%s)",
		unique, idx.Name, table, strings.Join(idx.Columns, ", "))
}

func renderDropIndex(idx *Index) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s CASCADE", idx.Name)
}

func renderAddForeignKey(table string, fk *ForeignKey) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		table, fk.Name, strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
}

func renderDropConstraint(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", table, name)
}
