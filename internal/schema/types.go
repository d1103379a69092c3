// Package schema holds the canonical relational model every source converges to.
//
// A Database is assembled once by a source (DDL script, live catalog) and then only
// read. Tables are ordered by (Schema, Name) and foreign keys by
// (ReferencedSchema, ReferencedTable, ParentSchema, ParentTable, Name), both using
// byte-wise string comparison.
package schema

const (
	// DefaultSchema is assumed for unqualified table names.
	DefaultSchema = "dbo"

	// CommentProperty is the extended property carrying human-readable comments.
	CommentProperty = "MS_Description"

	// UnknownType is used when a column's type cannot be determined.
	UnknownType = "unknown"
)

// Database represents a complete schema
type Database struct {
	Name        string       `yaml:"name,omitempty"`
	Tables      []Table      `yaml:"tables"`
	ForeignKeys []ForeignKey `yaml:"foreignKeys"`
}

// Table represents a database table
type Table struct {
	Schema  string   `yaml:"schema"`
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
	// PrimaryKey is nil when the table has no primary key.
	PrimaryKey []string `yaml:"primaryKey,omitempty"`
	Comment    *string  `yaml:"comment,omitempty"`
}

// Column represents a table column
type Column struct {
	Ordinal    int     `yaml:"ordinal"`
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	IsNullable bool    `yaml:"nullable"`
	IsComputed bool    `yaml:"computed,omitempty"`
	Comment    *string `yaml:"comment,omitempty"`
}

// ForeignKey represents a many-to-one relationship from the parent table to the
// referenced table.
type ForeignKey struct {
	Name             string `yaml:"name"`
	ParentSchema     string `yaml:"parentSchema"`
	ParentTable      string `yaml:"parentTable"`
	ReferencedSchema string `yaml:"referencedSchema"`
	ReferencedTable  string `yaml:"referencedTable"`
}

// IsPrimaryKey reports whether the named column is part of the table's primary key.
func (t *Table) IsPrimaryKey(column string) bool {
	for _, pk := range t.PrimaryKey {
		if pk == column {
			return true
		}
	}
	return false
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// FindTable returns the table with the given schema and name, or nil.
func (d *Database) FindTable(schemaName, name string) *Table {
	for i := range d.Tables {
		if d.Tables[i].Schema == schemaName && d.Tables[i].Name == name {
			return &d.Tables[i]
		}
	}
	return nil
}
