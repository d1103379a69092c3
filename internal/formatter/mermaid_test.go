package formatter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/erdschema/internal/schema"
)

func customersAndOrders(schemaName string) *schema.Database {
	return &schema.Database{
		Tables: []schema.Table{
			{
				Schema: schemaName,
				Name:   "Customers",
				Columns: []schema.Column{
					{Ordinal: 0, Name: "CustomerId", Type: "int"},
					{Ordinal: 1, Name: "Name", Type: "nvarchar"},
				},
				PrimaryKey: []string{"CustomerId"},
			},
			{
				Schema: schemaName,
				Name:   "Orders",
				Columns: []schema.Column{
					{Ordinal: 0, Name: "OrderId", Type: "int"},
					{Ordinal: 1, Name: "CustomerId", Type: "int"},
				},
				PrimaryKey: []string{"OrderId"},
			},
		},
		ForeignKeys: []schema.ForeignKey{{
			Name:             "FK_Orders_Customers",
			ParentSchema:     schemaName,
			ParentTable:      "Orders",
			ReferencedSchema: schemaName,
			ReferencedTable:  "Customers",
		}},
	}
}

func TestRender_DefaultSchema(t *testing.T) {
	got, err := Render(context.Background(), customersAndOrders("dbo"), MermaidOptions{})
	require.NoError(t, err)

	want := `erDiagram
  Customers {
    int CustomerId(pk) "not null"
    nvarchar Name "not null"
  }
  Orders {
    int OrderId(pk) "not null"
    int CustomerId "not null"
  }
  Customers ||--o{ Orders : "FK_Orders_Customers"
`
	assert.Equal(t, want, got)
}

func TestRender_QualifiedEntityIDs(t *testing.T) {
	got, err := Render(context.Background(), customersAndOrders("sales"), MermaidOptions{})
	require.NoError(t, err)

	assert.Contains(t, got, "  sales_Customers {\n")
	assert.Contains(t, got, "  sales_Orders {\n")
	assert.Contains(t, got, `  sales_Customers ||--o{ sales_Orders : "FK_Orders_Customers"`)
	assert.NotContains(t, got, "  Customers {")
}

func TestRender_CustomDefaultSchema(t *testing.T) {
	got, err := Render(context.Background(), customersAndOrders("public"), MermaidOptions{DefaultSchema: "public"})
	require.NoError(t, err)
	assert.Contains(t, got, "  Customers {\n")
}

func TestRender_KeyColumnsFirst(t *testing.T) {
	db := &schema.Database{Tables: []schema.Table{{
		Schema: "dbo",
		Name:   "OrderLines",
		Columns: []schema.Column{
			{Ordinal: 0, Name: "Note", Type: "nvarchar", IsNullable: true},
			{Ordinal: 1, Name: "OrderId", Type: "int"},
			{Ordinal: 2, Name: "Total", Type: "money", IsComputed: true, IsNullable: true},
			{Ordinal: 3, Name: "LineNo", Type: "int"},
		},
		PrimaryKey: []string{"LineNo", "OrderId"},
	}}}

	got, err := Render(context.Background(), db, MermaidOptions{})
	require.NoError(t, err)

	want := `erDiagram
  OrderLines {
    int OrderId(pk) "not null"
    int LineNo(pk) "not null"
    nvarchar Note "null"
    money Total "null, computed"
  }
`
	assert.Equal(t, want, got)
}

func TestRender_SanitizedNames(t *testing.T) {
	db := &schema.Database{
		Tables: []schema.Table{{
			Schema:  "my-app",
			Name:    "Order Items",
			Columns: []schema.Column{{Name: "2nd.value", Type: "int", IsNullable: true}},
		}},
		ForeignKeys: []schema.ForeignKey{{
			Name: `FK "quoted"`, ParentSchema: "dbo", ParentTable: "1st", ReferencedSchema: "my-app", ReferencedTable: "Order Items",
		}},
	}

	got, err := Render(context.Background(), db, MermaidOptions{})
	require.NoError(t, err)
	assert.Contains(t, got, "  my_app_Order_Items {\n")
	assert.Contains(t, got, `    int _2nd_value "null"`)
	assert.Contains(t, got, `  my_app_Order_Items ||--o{ _1st : "FK #quot;quoted#quot;"`)
}

func TestRender_EmptyDatabase(t *testing.T) {
	got, err := Render(context.Background(), &schema.Database{}, MermaidOptions{})
	require.NoError(t, err)
	assert.Equal(t, "erDiagram\n", got)
}

func TestRender_NewLine(t *testing.T) {
	got, err := Render(context.Background(), customersAndOrders("dbo"), MermaidOptions{NewLine: "\r\n"})
	require.NoError(t, err)

	lines := strings.Split(got, "\r\n")
	assert.Equal(t, "erDiagram", lines[0])
	assert.Len(t, lines, 11) // 10 lines plus the empty tail
	assert.NotContains(t, strings.ReplaceAll(got, "\r\n", ""), "\n")
}

func TestRender_Deterministic(t *testing.T) {
	db := customersAndOrders("sales")
	first, err := Render(context.Background(), db, MermaidOptions{})
	require.NoError(t, err)
	second, err := Render(context.Background(), db, MermaidOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderMarkdown(t *testing.T) {
	diagram, err := Render(context.Background(), customersAndOrders("dbo"), MermaidOptions{})
	require.NoError(t, err)

	got, err := RenderMarkdown(context.Background(), customersAndOrders("dbo"), MermaidOptions{})
	require.NoError(t, err)

	assert.Equal(t, "```mermaid\n"+diagram+"```", got)
}

func TestRender_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Render(ctx, customersAndOrders("dbo"), MermaidOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

// cancelAfter cancels its context after a number of writes.
type cancelAfter struct {
	writes int
	cancel context.CancelFunc
	buf    strings.Builder
}

func (w *cancelAfter) Write(p []byte) (int, error) {
	w.writes--
	if w.writes == 0 {
		w.cancel()
	}
	return w.buf.Write(p)
}

func TestFormat_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// "erDiagram" + newline, table open + newline, first column + newline.
	w := &cancelAfter{writes: 6, cancel: cancel}
	err := NewMermaidFormatter(w, MermaidOptions{}).Format(ctx, customersAndOrders("dbo"))
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, "erDiagram\n  Customers {\n    int CustomerId(pk) \"not null\"\n", w.buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestFormat_WriteError(t *testing.T) {
	err := NewMermaidFormatter(failingWriter{}, MermaidOptions{}).Format(context.Background(), customersAndOrders("dbo"))
	assert.EqualError(t, err, "disk full")
}

func TestRenderToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.mmd")

	require.NoError(t, RenderToFile(context.Background(), customersAndOrders("dbo"), path, MermaidOptions{}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	want, err := Render(context.Background(), customersAndOrders("dbo"), MermaidOptions{})
	require.NoError(t, err)
	assert.Equal(t, want, string(content))

	require.NoError(t, RenderMarkdownToFile(context.Background(), customersAndOrders("dbo"), path, MermaidOptions{}))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "```mermaid\n"), "file is replaced")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestRenderToFile_CancelledLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.md")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RenderMarkdownToFile(ctx, customersAndOrders("dbo"), path, MermaidOptions{})
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRenderToFile_CancelledKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.mmd")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, RenderToFile(ctx, customersAndOrders("dbo"), path, MermaidOptions{}))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(content))
}

func TestRenderToFile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "schema.mmd")
	err := RenderToFile(context.Background(), customersAndOrders("dbo"), path, MermaidOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create output file")
}
