// Package builder folds recognized DDL statements into the canonical schema model.
//
// A Builder owns the mutable state of one parse: a table map keyed by (schema, name)
// and an append-only foreign key list. Database freezes that state into a sorted
// schema.Database. The builder never fails; anything it cannot place is dropped or
// given a fallback value.
package builder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tordrt/erdschema/internal/ddl"
	"github.com/tordrt/erdschema/internal/logging"
	"github.com/tordrt/erdschema/internal/schema"
)

type tableKey struct {
	schema string
	name   string
}

type columnEntry struct {
	name     string
	typ      string
	nullable *bool // explicit NULL / NOT NULL, nil when unspecified
	computed bool
	inlinePK bool
}

type tableEntry struct {
	key        tableKey
	columns    []columnEntry
	primaryKey []string // declaration order, deduplicated case-insensitively
}

// Builder accumulates table, column, key and comment state across statements.
type Builder struct {
	logger      *slog.Logger
	tables      map[tableKey]*tableEntry
	foreignKeys []schema.ForeignKey
	comments    []*ddl.ExtendedProperty
}

// New creates an empty Builder. A nil logger discards output.
func New(logger *slog.Logger) *Builder {
	return &Builder{
		logger: logging.OrDiscard(logger),
		tables: make(map[tableKey]*tableEntry),
	}
}

// Parse recognizes script and builds its schema model. Syntax errors are returned as
// *ddl.ParseError and no model is produced.
func Parse(script string, logger *slog.Logger) (*schema.Database, error) {
	stmts, err := ddl.Recognize(script)
	if err != nil {
		return nil, err
	}
	return Build(stmts, logger), nil
}

// Build applies stmts in order and returns the frozen model.
func Build(stmts []ddl.Statement, logger *slog.Logger) *schema.Database {
	b := New(logger)
	for _, stmt := range stmts {
		b.Apply(stmt)
	}
	return b.Database()
}

// Apply folds one statement into the builder state.
func (b *Builder) Apply(stmt ddl.Statement) {
	switch s := stmt.(type) {
	case *ddl.CreateTable:
		key := keyOf(s.Table)
		if _, exists := b.tables[key]; exists {
			b.logger.Debug("table redeclared, replacing previous definition",
				slog.String("schema", key.schema), slog.String("table", key.name), slog.Int("line", s.Pos.Line))
		}
		entry := &tableEntry{key: key}
		b.tables[key] = entry
		b.addElements(entry, s.Columns, s.Constraints)

	case *ddl.AlterTableAdd:
		key := keyOf(s.Table)
		entry, ok := b.tables[key]
		if !ok {
			entry = &tableEntry{key: key}
			b.tables[key] = entry
		}
		b.addElements(entry, s.Columns, s.Constraints)

	case *ddl.ExtendedProperty:
		// Resolved against the final table state so annotations may precede their table.
		b.comments = append(b.comments, s)
	}
}

func keyOf(name ddl.ObjectName) tableKey {
	return tableKey{schema: schemaOrDefault(name.Schema), name: name.Name}
}

func schemaOrDefault(s string) string {
	if s == "" {
		return schema.DefaultSchema
	}
	return s
}

func (b *Builder) addElements(entry *tableEntry, cols []ddl.ColumnDef, cons []ddl.Constraint) {
	for _, def := range cols {
		col := columnEntry{
			name:     def.Name,
			typ:      schema.NormalizeType(def.Type),
			nullable: def.Nullable,
			computed: def.Computed,
		}
		for _, c := range def.Constraints {
			if c.Kind == ddl.PrimaryKeyConstraint {
				col.inlinePK = true
			}
			b.addConstraint(entry, c)
		}
		entry.putColumn(col)
	}

	for _, c := range cons {
		b.addConstraint(entry, c)
	}
}

func (b *Builder) addConstraint(entry *tableEntry, c ddl.Constraint) {
	switch c.Kind {
	case ddl.PrimaryKeyConstraint:
		for _, name := range c.Columns {
			entry.addPrimaryKey(name)
		}

	case ddl.ForeignKeyConstraint:
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("FK_%s_%s", entry.key.name, c.References.Name)
			b.logger.Debug("synthesized foreign key name",
				slog.String("table", entry.key.name), slog.String("constraint", name))
		}
		b.foreignKeys = append(b.foreignKeys, schema.ForeignKey{
			Name:             name,
			ParentSchema:     entry.key.schema,
			ParentTable:      entry.key.name,
			ReferencedSchema: schemaOrDefault(c.References.Schema),
			ReferencedTable:  c.References.Name,
		})
	}
}

// putColumn appends col, or replaces an earlier column with the same name in place.
func (e *tableEntry) putColumn(col columnEntry) {
	for i := range e.columns {
		if strings.EqualFold(e.columns[i].name, col.name) {
			e.columns[i] = col
			return
		}
	}
	e.columns = append(e.columns, col)
}

func (e *tableEntry) addPrimaryKey(name string) {
	for _, existing := range e.primaryKey {
		if strings.EqualFold(existing, name) {
			return
		}
	}
	e.primaryKey = append(e.primaryKey, name)
}

func (e *tableEntry) findColumn(name string) int {
	for i := range e.columns {
		if strings.EqualFold(e.columns[i].name, name) {
			return i
		}
	}
	return -1
}

// Database freezes the current state into a sorted canonical model. The builder
// state is not modified, so Database may be called more than once.
func (b *Builder) Database() *schema.Database {
	db := &schema.Database{
		Tables:      make([]schema.Table, 0, len(b.tables)),
		ForeignKeys: make([]schema.ForeignKey, len(b.foreignKeys)),
	}

	for _, entry := range b.tables {
		db.Tables = append(db.Tables, entry.freeze())
	}
	schema.SortTables(db.Tables)

	copy(db.ForeignKeys, b.foreignKeys)
	schema.SortForeignKeys(db.ForeignKeys)

	for _, prop := range b.comments {
		b.attachComment(db, prop)
	}

	return db
}

func (e *tableEntry) freeze() schema.Table {
	t := schema.Table{
		Schema:  e.key.schema,
		Name:    e.key.name,
		Columns: make([]schema.Column, 0, len(e.columns)),
	}

	inKey := make([]bool, len(e.columns))
	for _, name := range e.primaryKey {
		if i := e.findColumn(name); i >= 0 && !inKey[i] {
			inKey[i] = true
			t.PrimaryKey = append(t.PrimaryKey, e.columns[i].name)
		}
	}

	for i, c := range e.columns {
		nullable := true
		switch {
		case c.nullable != nil:
			nullable = *c.nullable
		case c.inlinePK || inKey[i]:
			nullable = false
		}

		t.Columns = append(t.Columns, schema.Column{
			Ordinal:    i,
			Name:       c.name,
			Type:       c.typ,
			IsNullable: nullable,
			IsComputed: c.computed,
		})
	}

	return t
}

// attachComment resolves an annotation target: the default-schema table first, then
// the first table in model order whose name matches case-insensitively.
func (b *Builder) attachComment(db *schema.Database, prop *ddl.ExtendedProperty) {
	table := db.FindTable(schema.DefaultSchema, prop.Level1Name)
	if table == nil {
		for i := range db.Tables {
			if strings.EqualFold(db.Tables[i].Name, prop.Level1Name) {
				table = &db.Tables[i]
				break
			}
		}
	}
	if table == nil {
		b.logger.Debug("dropping comment for unknown table",
			slog.String("table", prop.Level1Name), slog.Int("line", prop.Pos.Line))
		return
	}

	value := prop.Value
	if strings.EqualFold(prop.Level2Type, "COLUMN") && prop.Level2Name != "" {
		for i := range table.Columns {
			if strings.EqualFold(table.Columns[i].Name, prop.Level2Name) {
				table.Columns[i].Comment = &value
				return
			}
		}
		b.logger.Debug("comment column not found, attaching to table",
			slog.String("table", table.Name), slog.String("column", prop.Level2Name))
	}
	table.Comment = &value
}
