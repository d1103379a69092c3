package formatter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/erdschema/internal/schema"
)

func strPtr(s string) *string { return &s }

func commentedDatabase() *schema.Database {
	db := customersAndOrders("dbo")
	db.Tables[0].Comment = strPtr("Registered customers")
	db.Tables[0].Columns[1].Comment = strPtr("Display name")
	db.Tables[1].Columns[1].IsNullable = true
	return db
}

func TestMarkdownFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownFormatter(&buf).Format(commentedDatabase()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Database Schema\n\n## dbo.Customers\n\nRegistered customers\n\n"))
	assert.Contains(t, out, "- **CustomerId:** int, PK, NOT NULL\n")
	assert.Contains(t, out, "- **Name:** nvarchar, NOT NULL - Display name\n")
	assert.Contains(t, out, "- **CustomerId:** int\n", "nullable column carries no marker")
	assert.Contains(t, out, "### References\n\n- FK_Orders_Customers → dbo.Customers\n")
	assert.Contains(t, out, "### Referenced by\n\n- dbo.Orders (FK_Orders_Customers)\n")
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextFormatter(&buf).Format(commentedDatabase()))
	out := buf.String()

	assert.Contains(t, out, "TABLE dbo.Customers (PK: CustomerId)\nRegistered customers\n")
	assert.Contains(t, out, "Display name")
	assert.Contains(t, out, "RELATIONS")
	assert.Contains(t, out, "FK_Orders_Customers")
	assert.Contains(t, out, "dbo.Orders")
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewYAMLFormatter(&buf).Format(commentedDatabase()))

	assert.Contains(t, buf.String(), "comment: Registered customers")

	var decoded schema.Database
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, *commentedDatabase(), decoded)
}

func TestMultiFileFormatter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docs")
	db := commentedDatabase()
	db.Tables = append(db.Tables, schema.Table{Schema: "audit", Name: "Log", Columns: []schema.Column{{Name: "Id", Type: "int"}}})
	schema.SortTables(db.Tables)

	f := NewMultiFileFormatter(dir, FormatMarkdown, MermaidOptions{})
	require.NoError(t, f.Format(context.Background(), db))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"_overview.md", "Customers.md", "Orders.md", "audit_Log.md"}, names)

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.md"))
	require.NoError(t, err)
	assert.Contains(t, string(overview), "- [dbo.Customers](Customers.md): Registered customers\n")
	assert.Contains(t, string(overview), "```mermaid\nerDiagram\n")

	customers, err := os.ReadFile(filepath.Join(dir, "Customers.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(customers), "## dbo.Customers\n"))
}

func TestMultiFileFormatter_Text(t *testing.T) {
	dir := t.TempDir()
	f := NewMultiFileFormatter(dir, FormatText, MermaidOptions{})
	require.NoError(t, f.Format(context.Background(), commentedDatabase()))

	overview, err := os.ReadFile(filepath.Join(dir, "_overview.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(overview), "dbo.Orders -> Orders.txt\n")
	assert.Contains(t, string(overview), "erDiagram\n")

	_, err = os.Stat(filepath.Join(dir, "Orders.txt"))
	assert.NoError(t, err)
}
