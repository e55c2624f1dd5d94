package schema

import (
	"errors"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
)

// ErrEmptyPlan is returned by Generate when the database already matches the
// declared schema and there is nothing to generate.
var ErrEmptyPlan = errors.New("database already matches the declared schema")

// migrationIDFormat is the timestamp layout of migration id prefixes.
const migrationIDFormat = "20060102150405"

// Generator emits migration source files for the migrations package from a
// diff plan.
type Generator struct {
	dir   string
	clock clock.Clock
}

// GeneratorOption enables the creation of functional options for the
// configuration of a generator.
type GeneratorOption func(g *Generator)

// WithClock sets the clock used to build migration ids.
func WithClock(c clock.Clock) GeneratorOption {
	return func(g *Generator) {
		g.clock = c
	}
}

// NewGenerator builds a generator that writes migration files to dir.
func NewGenerator(dir string, opts ...GeneratorOption) *Generator {
	g := &Generator{dir: dir, clock: clock.New()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate writes a new migration source file for the given plan and returns
// its path. The file registers the migration with the migrations package in
// the same format as the handwritten ones.
func (g *Generator) Generate(name string, plan *Plan) (string, error) {
	if plan.Empty() {
		return "", ErrEmptyPlan
	}

	id := fmt.Sprintf("%s_%s", g.clock.Now().UTC().Format(migrationIDFormat), slug(name))

	src, err := format.Source([]byte(renderMigrationFile(id, plan)))
	if err != nil {
		return "", fmt.Errorf("formatting generated migration: %w", err)
	}

	path := filepath.Join(g.dir, id+".go")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("migration file %q already exists", path)
	}
	if err := os.WriteFile(path, src, 0644); err != nil {
		return "", fmt.Errorf("writing generated migration: %w", err)
	}

	return path, nil
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// slug converts a human given migration name into the snake_case form used
// in migration ids.
func slug(name string) string {
	s := slugInvalidChars.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "auto"
	}
	return s
}

func renderMigrationFile(id string, plan *Plan) string {
	var b strings.Builder

	b.WriteString("package migrations\n\n")
	b.WriteString("import migrate \"github.com/rubenv/sql-migrate\"\n\n")
	b.WriteString("func init() {\n")
	b.WriteString("\tm := &Migration{\n")
	b.WriteString("\t\tMigration: &migrate.Migration{\n")
	fmt.Fprintf(&b, "\t\t\tId: %q,\n", id)

	b.WriteString("\t\t\tUp: []string{\n")
	for _, stmt := range plan.Statements {
		fmt.Fprintf(&b, "\t\t\t\t%s,\n", quoteStatement(stmt))
	}
	b.WriteString("\t\t\t},\n")

	b.WriteString("\t\t\tDown: []string{\n")
	for _, stmt := range plan.Revert {
		fmt.Fprintf(&b, "\t\t\t\t%s,\n", quoteStatement(stmt))
	}
	b.WriteString("\t\t\t},\n")

	b.WriteString("\t\t},\n")
	b.WriteString("\t\tPostDeployment: false,\n")
	b.WriteString("\t}\n\n")
	b.WriteString("\tallMigrations = append(allMigrations, m)\n")
	b.WriteString("}\n")

	return b.String()
}

// quoteStatement renders a SQL statement as a Go string literal, using a raw
// literal unless the statement itself contains a backtick.
func quoteStatement(stmt string) string {
	if strings.Contains(stmt, "`") {
		return strconv.Quote(stmt)
	}
	return "`" + stmt + "`"
}
