package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/erdschema/internal/schema"
)

// MarkdownFormatter formats schema documentation as markdown, including the table
// and column comments the diagram leaves out.
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format
func (f *MarkdownFormatter) Format(db *schema.Database) error {
	p := &printer{w: f.writer}
	p.printf("# Database Schema\n\n")
	for i := range db.Tables {
		f.formatTable(p, db, &db.Tables[i])
	}
	return p.err
}

// FormatTable formats a single table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatTable(db *schema.Database, table *schema.Table) error {
	p := &printer{w: f.writer}
	f.formatTable(p, db, table)
	return p.err
}

func (f *MarkdownFormatter) formatTable(p *printer, db *schema.Database, table *schema.Table) {
	p.printf("## %s.%s\n\n", table.Schema, table.Name)
	if table.Comment != nil {
		p.printf("%s\n\n", *table.Comment)
	}

	p.printf("### Columns\n\n")
	for _, col := range table.Columns {
		p.printf("- **%s:** %s", col.Name, strings.Join(columnAttributes(table, col), ", "))
		if col.Comment != nil {
			p.printf(" - %s", *col.Comment)
		}
		p.printf("\n")
	}
	p.printf("\n")

	if outgoing := outgoingKeys(db, table); len(outgoing) > 0 {
		p.printf("### References\n\n")
		for _, fk := range outgoing {
			p.printf("- %s → %s.%s\n", fk.Name, fk.ReferencedSchema, fk.ReferencedTable)
		}
		p.printf("\n")
	}

	if incoming := incomingKeys(db, table); len(incoming) > 0 {
		p.printf("### Referenced by\n\n")
		for _, fk := range incoming {
			p.printf("- %s.%s (%s)\n", fk.ParentSchema, fk.ParentTable, fk.Name)
		}
		p.printf("\n")
	}
}

// columnAttributes lists the type followed by key, nullability and computed markers.
func columnAttributes(table *schema.Table, col schema.Column) []string {
	attrs := []string{col.Type}
	if table.IsPrimaryKey(col.Name) {
		attrs = append(attrs, "PK")
	}
	if !col.IsNullable {
		attrs = append(attrs, "NOT NULL")
	}
	if col.IsComputed {
		attrs = append(attrs, "COMPUTED")
	}
	return attrs
}

func outgoingKeys(db *schema.Database, table *schema.Table) []schema.ForeignKey {
	var fks []schema.ForeignKey
	for _, fk := range db.ForeignKeys {
		if fk.ParentSchema == table.Schema && fk.ParentTable == table.Name {
			fks = append(fks, fk)
		}
	}
	return fks
}

func incomingKeys(db *schema.Database, table *schema.Table) []schema.ForeignKey {
	var fks []schema.ForeignKey
	for _, fk := range db.ForeignKeys {
		if fk.ReferencedSchema == table.Schema && fk.ReferencedTable == table.Name {
			fks = append(fks, fk)
		}
	}
	return fks
}

// printer is a fmt.Fprintf wrapper that keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
