package formatter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/tordrt/erdschema/internal/schema"
)

const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// OverviewFile is the name, without extension, of the file listing all tables.
const OverviewFile = "_overview"

// MultiFileFormatter writes schema to multiple files in a directory: an overview with
// the diagram, then one documentation file per table.
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
	Diagram      MermaidOptions
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string, diagram MermaidOptions) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
		Diagram:      diagram.withDefaults(),
	}
}

// Format writes the overview and the per-table files. Table files are written
// concurrently; the first failure cancels the rest.
func (f *MultiFileFormatter) Format(ctx context.Context, db *schema.Database) error {
	if err := os.MkdirAll(f.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeOverview(ctx, db); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range db.Tables {
		table := &db.Tables[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := f.writeTableFile(db, table); err != nil {
				return fmt.Errorf("failed to write table file for %s.%s: %w", table.Schema, table.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// TableFileName returns the file name used for a table.
func (f *MultiFileFormatter) TableFileName(table *schema.Table) string {
	return EntityID(table.Schema, table.Name, f.Diagram.DefaultSchema) + f.fileExtension()
}

func (f *MultiFileFormatter) writeOverview(ctx context.Context, db *schema.Database) error {
	path := filepath.Join(f.OutputDir, OverviewFile+f.fileExtension())
	return WriteFile(path, func(w io.Writer) error {
		if f.OutputFormat == FormatMarkdown {
			return f.writeMarkdownOverview(ctx, w, db)
		}
		return f.writeTextOverview(ctx, w, db)
	})
}

func (f *MultiFileFormatter) writeMarkdownOverview(ctx context.Context, w io.Writer, db *schema.Database) error {
	p := &printer{w: w}
	p.printf("# Schema Overview\n\n")
	p.printf("Each table has a corresponding file: `<table>%s`\n\n", f.fileExtension())
	p.printf("## Tables\n\n")

	for i := range db.Tables {
		table := &db.Tables[i]
		p.printf("- [%s.%s](%s)", table.Schema, table.Name, f.TableFileName(table))
		if table.Comment != nil {
			p.printf(": %s", *table.Comment)
		}
		p.printf("\n")
	}

	p.printf("\n## Diagram\n\n")
	if p.err != nil {
		return p.err
	}
	if err := NewMermaidFormatter(w, f.Diagram).FormatMarkdown(ctx, db); err != nil {
		return err
	}
	p.printf("\n")
	return p.err
}

func (f *MultiFileFormatter) writeTextOverview(ctx context.Context, w io.Writer, db *schema.Database) error {
	p := &printer{w: w}
	p.printf("SCHEMA OVERVIEW\n")
	p.printf("Each table has a file: <table>%s\n\n", f.fileExtension())

	for i := range db.Tables {
		table := &db.Tables[i]
		p.printf("%s.%s -> %s\n", table.Schema, table.Name, f.TableFileName(table))
	}
	p.printf("\n")
	if p.err != nil {
		return p.err
	}
	return NewMermaidFormatter(w, f.Diagram).Format(ctx, db)
}

func (f *MultiFileFormatter) writeTableFile(db *schema.Database, table *schema.Table) error {
	path := filepath.Join(f.OutputDir, f.TableFileName(table))
	return WriteFile(path, func(w io.Writer) error {
		if f.OutputFormat == FormatMarkdown {
			return NewMarkdownFormatter(w).FormatTable(db, table)
		}
		p := &printer{w: w}
		NewTextFormatter(w).formatTable(p, table)
		return p.err
	})
}

func (f *MultiFileFormatter) fileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
