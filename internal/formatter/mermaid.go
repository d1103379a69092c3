package formatter

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/tordrt/erdschema/internal/schema"
)

// MermaidOptions configures diagram rendering.
type MermaidOptions struct {
	// NewLine terminates every line. Defaults to "\n".
	NewLine string

	// DefaultSchema is the schema whose tables are identified by name alone.
	// Defaults to "dbo".
	DefaultSchema string
}

func (o MermaidOptions) withDefaults() MermaidOptions {
	if o.NewLine == "" {
		o.NewLine = "\n"
	}
	if o.DefaultSchema == "" {
		o.DefaultSchema = schema.DefaultSchema
	}
	return o
}

// MermaidFormatter renders a database as a Mermaid erDiagram.
type MermaidFormatter struct {
	writer io.Writer
	opts   MermaidOptions
}

// NewMermaidFormatter creates a new diagram formatter
func NewMermaidFormatter(w io.Writer, opts MermaidOptions) *MermaidFormatter {
	return &MermaidFormatter{writer: w, opts: opts.withDefaults()}
}

// Format writes the diagram. The context is checked before every table, column and
// relationship line; on cancellation the context error is returned and nothing more
// is written.
func (f *MermaidFormatter) Format(ctx context.Context, db *schema.Database) error {
	lw := &lineWriter{w: f.writer, nl: f.opts.NewLine}
	if err := f.render(ctx, lw, db); err != nil {
		return err
	}
	return lw.err
}

// FormatMarkdown writes the diagram inside a ```mermaid fence. The closing fence is
// not followed by a newline.
func (f *MermaidFormatter) FormatMarkdown(ctx context.Context, db *schema.Database) error {
	lw := &lineWriter{w: f.writer, nl: f.opts.NewLine}
	lw.line("```mermaid")
	if err := f.render(ctx, lw, db); err != nil {
		return err
	}
	lw.write("```")
	return lw.err
}

func (f *MermaidFormatter) render(ctx context.Context, lw *lineWriter, db *schema.Database) error {
	lw.line("erDiagram")

	for i := range db.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		table := &db.Tables[i]
		lw.line("  " + EntityID(table.Schema, table.Name, f.opts.DefaultSchema) + " {")

		for _, col := range keyColumnsFirst(table) {
			if err := ctx.Err(); err != nil {
				return err
			}
			lw.line(formatColumnLine(table, col))
		}

		lw.line("  }")
		if lw.err != nil {
			return lw.err
		}
	}

	for _, fk := range db.ForeignKeys {
		if err := ctx.Err(); err != nil {
			return err
		}
		lw.line("  " + EntityID(fk.ReferencedSchema, fk.ReferencedTable, f.opts.DefaultSchema) +
			" ||--o{ " + EntityID(fk.ParentSchema, fk.ParentTable, f.opts.DefaultSchema) +
			` : "` + escapeLabel(fk.Name) + `"`)
		if lw.err != nil {
			return lw.err
		}
	}

	return nil
}

// keyColumnsFirst returns the primary key columns followed by the rest, each group in
// ordinal order.
func keyColumnsFirst(table *schema.Table) []schema.Column {
	cols := make([]schema.Column, 0, len(table.Columns))
	for _, c := range table.Columns {
		if table.IsPrimaryKey(c.Name) {
			cols = append(cols, c)
		}
	}
	for _, c := range table.Columns {
		if !table.IsPrimaryKey(c.Name) {
			cols = append(cols, c)
		}
	}
	return cols
}

func formatColumnLine(table *schema.Table, col schema.Column) string {
	var b strings.Builder
	b.WriteString("    ")
	b.WriteString(col.Type)
	b.WriteByte(' ')
	b.WriteString(SanitizeIdentifier(col.Name))
	if table.IsPrimaryKey(col.Name) {
		b.WriteString("(pk)")
	}
	b.WriteString(` "`)
	if col.IsNullable {
		b.WriteString("null")
	} else {
		b.WriteString("not null")
	}
	if col.IsComputed {
		b.WriteString(", computed")
	}
	b.WriteByte('"')
	return b.String()
}

// escapeLabel replaces double quotes, which would end a quoted label, with the
// Mermaid entity code.
func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

// Render returns the diagram text.
func Render(ctx context.Context, db *schema.Database, opts MermaidOptions) (string, error) {
	var buf bytes.Buffer
	if err := NewMermaidFormatter(&buf, opts).Format(ctx, db); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderMarkdown returns the diagram text wrapped in a Markdown code fence.
func RenderMarkdown(ctx context.Context, db *schema.Database, opts MermaidOptions) (string, error) {
	var buf bytes.Buffer
	if err := NewMermaidFormatter(&buf, opts).FormatMarkdown(ctx, db); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToFile writes the diagram to path, creating or replacing it.
func RenderToFile(ctx context.Context, db *schema.Database, path string, opts MermaidOptions) error {
	return WriteFile(path, func(w io.Writer) error {
		return NewMermaidFormatter(w, opts).Format(ctx, db)
	})
}

// RenderMarkdownToFile writes the fenced diagram to path, creating or replacing it.
func RenderMarkdownToFile(ctx context.Context, db *schema.Database, path string, opts MermaidOptions) error {
	return WriteFile(path, func(w io.Writer) error {
		return NewMermaidFormatter(w, opts).FormatMarkdown(ctx, db)
	})
}

// lineWriter remembers the first write error and ignores later writes.
type lineWriter struct {
	w   io.Writer
	nl  string
	err error
}

func (lw *lineWriter) write(s string) {
	if lw.err != nil {
		return
	}
	_, lw.err = io.WriteString(lw.w, s)
}

func (lw *lineWriter) line(s string) {
	lw.write(s)
	lw.write(lw.nl)
}
