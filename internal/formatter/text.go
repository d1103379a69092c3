package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tordrt/erdschema/internal/schema"
)

// TextFormatter formats schema as plain-text tables
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes one table per database table, followed by the relationships.
func (f *TextFormatter) Format(db *schema.Database) error {
	p := &printer{w: f.writer}

	for i := range db.Tables {
		if i > 0 {
			p.printf("\n") // Blank line between tables
		}
		f.formatTable(p, &db.Tables[i])
	}

	if len(db.ForeignKeys) > 0 {
		p.printf("\nRELATIONS\n")
		t := newTextTable()
		t.AppendHeader(table.Row{"Constraint", "From", "To"})
		for _, fk := range db.ForeignKeys {
			t.AppendRow(table.Row{
				fk.Name,
				fk.ParentSchema + "." + fk.ParentTable,
				fk.ReferencedSchema + "." + fk.ReferencedTable,
			})
		}
		p.printf("%s\n", t.Render())
	}

	return p.err
}

func (f *TextFormatter) formatTable(p *printer, tbl *schema.Table) {
	// Table header with primary key
	pkStr := ""
	if len(tbl.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(tbl.PrimaryKey, ", "))
	}
	p.printf("TABLE %s.%s%s\n", tbl.Schema, tbl.Name, pkStr)
	if tbl.Comment != nil {
		p.printf("%s\n", *tbl.Comment)
	}

	t := newTextTable()
	t.AppendHeader(table.Row{"#", "Column", "Type", "Null", "Computed", "Comment"})
	for _, col := range tbl.Columns {
		comment := ""
		if col.Comment != nil {
			comment = *col.Comment
		}
		t.AppendRow(table.Row{col.Ordinal, col.Name, col.Type, yesNo(col.IsNullable), yesNo(col.IsComputed), comment})
	}
	p.printf("%s\n", t.Render())
}

func newTextTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	return t
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
