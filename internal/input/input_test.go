package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "schema.sql")
	require.NoError(t, os.WriteFile(script, []byte("CREATE TABLE t (id int)"), 0o644))

	tests := []struct {
		name  string
		input string
		want  Kind
	}{
		{"postgres url", "postgres://u:p@localhost/app", Connection},
		{"postgresql url", "postgresql://localhost/app", Connection},
		{"mysql url", "mysql://u@tcp(localhost)/app", Connection},
		{"sqlite url", "sqlite://./app.db", Connection},
		{"sqlserver url", "sqlserver://sa@localhost?database=app", Connection},
		{"ado string", "Server=.;Initial Catalog=Shop;Integrated Security=true", Connection},
		{"ado keyword case", "DATA SOURCE=db01;USER ID=sa", Connection},
		{"existing file", script, File},
		{"directory", dir, RawSQL},
		{"missing file", filepath.Join(dir, "missing.sql"), RawSQL},
		{"sql text", "CREATE TABLE Orders (Id int NOT NULL)", RawSQL},
		{"empty", "", RawSQL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.input))
		})
	}
}

func TestResolve_SQLMentioningKeywordIsConnection(t *testing.T) {
	// A script that happens to contain "Database=" is classified as a connection;
	// pass such scripts as files.
	assert.Equal(t, Connection, Resolve("-- Database=Shop\nCREATE TABLE t (id int)"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "sql", RawSQL.String())
	assert.Equal(t, "file", File.String())
	assert.Equal(t, "connection", Connection.String())
}
