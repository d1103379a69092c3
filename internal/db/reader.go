package db

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tordrt/erdschema/internal/input"
	"github.com/tordrt/erdschema/internal/schema"
)

// Reader reads a live catalog into the canonical model.
type Reader interface {
	// ReadDatabase reads the given tables, or every user table when tables is empty.
	// Foreign keys whose parent or referenced table was not read are dropped.
	ReadDatabase(ctx context.Context, tables []string) (*schema.Database, error)

	// DefaultSchema is the schema whose tables render without a prefix.
	DefaultSchema() string
}

const (
	DialectPostgres  = "postgres"
	DialectMySQL     = "mysql"
	DialectSQLite    = "sqlite"
	DialectSQLServer = "sqlserver"
)

// Source is a parsed connection target.
type Source struct {
	Dialect string
	DSN     string
}

// ParseURL determines the dialect of a connection URL and the DSN its driver expects.
// ADO-style key/value connection strings are treated as SQL Server.
func ParseURL(rawURL string) (Source, error) {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Source{Dialect: DialectPostgres, DSN: rawURL}, nil
	case strings.HasPrefix(lower, "mysql://"):
		return Source{Dialect: DialectMySQL, DSN: rawURL[len("mysql://"):]}, nil
	case strings.HasPrefix(lower, "sqlite://"):
		return Source{Dialect: DialectSQLite, DSN: rawURL[len("sqlite://"):]}, nil
	case strings.HasPrefix(lower, "sqlserver://"):
		return Source{Dialect: DialectSQLServer, DSN: rawURL}, nil
	case input.IsADOConnectionString(rawURL):
		return Source{Dialect: DialectSQLServer, DSN: rawURL}, nil
	default:
		return Source{}, fmt.Errorf("unsupported database URL (must start with postgres://, postgresql://, mysql://, sqlite://, or sqlserver://)")
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// DefaultSchemaFor returns the schema a reader opened on rawURL reads by default:
// schemaName when set, otherwise public for PostgreSQL, the connected database for
// MySQL and dbo for SQL Server. SQLite always reads main.
func DefaultSchemaFor(rawURL, schemaName string) (string, error) {
	src, err := ParseURL(rawURL)
	if err != nil {
		return "", err
	}
	return src.defaultSchema(schemaName)
}

func (s Source) defaultSchema(schemaName string) (string, error) {
	if s.Dialect == DialectSQLite {
		return sqliteSchema, nil
	}
	if schemaName != "" {
		return schemaName, nil
	}
	switch s.Dialect {
	case DialectPostgres:
		return "public", nil
	case DialectMySQL:
		return ParseDatabaseName(s.DSN)
	default:
		return schema.DefaultSchema, nil
	}
}

// Open connects to the database behind rawURL and returns a reader for it. schemaName
// restricts the reader to one schema; when empty, PostgreSQL and MySQL read their
// DefaultSchemaFor schema and SQL Server reads every user schema. The returned closer
// releases the connection.
func Open(ctx context.Context, rawURL, schemaName string) (Reader, io.Closer, error) {
	src, err := ParseURL(rawURL)
	if err != nil {
		return nil, nil, err
	}

	switch src.Dialect {
	case DialectPostgres:
		readSchema, _ := src.defaultSchema(schemaName)
		client, err := NewPostgresClient(ctx, src.DSN)
		if err != nil {
			return nil, nil, err
		}
		closer := closerFunc(func() error { return client.Close(context.Background()) })
		return NewPostgresReader(client, readSchema), closer, nil

	case DialectMySQL:
		readSchema, err := src.defaultSchema(schemaName)
		if err != nil {
			return nil, nil, err
		}
		client, err := NewMySQLClient(ctx, src.DSN)
		if err != nil {
			return nil, nil, err
		}
		return NewMySQLReader(client, readSchema), client, nil

	case DialectSQLite:
		client, err := NewSQLiteClient(ctx, src.DSN)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLiteReader(client, sqliteDatabaseName(src.DSN)), client, nil

	default:
		client, err := NewSQLServerClient(ctx, src.DSN)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLServerReader(client, schemaName), client, nil
	}
}

// ParseDatabaseName extracts the database name from a MySQL DSN.
func ParseDatabaseName(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	if cfg.DBName == "" {
		return "", fmt.Errorf("MySQL DSN does not name a database")
	}
	return cfg.DBName, nil
}

func sqliteDatabaseName(dsn string) string {
	path := dsn
	if u, err := url.Parse(dsn); err == nil && u.Scheme == "file" {
		path = u.Opaque
		if path == "" {
			path = u.Path
		}
	} else if i := strings.IndexByte(dsn, '?'); i >= 0 {
		path = dsn[:i]
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// selectTables keeps the catalog tables named in requested, or all of them when
// requested is empty. Names that do not exist are ignored.
func selectTables(all []catalogTable, requested []string) []catalogTable {
	if len(requested) == 0 {
		return all
	}
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		want[name] = true
	}
	var selected []catalogTable
	for _, t := range all {
		if want[t.name] || want[t.schema+"."+t.name] {
			selected = append(selected, t)
		}
	}
	return selected
}

// catalogTable is a user table as listed by a catalog.
type catalogTable struct {
	schema  string
	name    string
	comment *string
}

// newDatabase assigns ordinals, drops foreign keys that leave the set of read tables
// and orders everything canonically.
func newDatabase(name string, tables []schema.Table, fks []schema.ForeignKey) *schema.Database {
	if tables == nil {
		tables = []schema.Table{}
	}

	read := make(map[[2]string]bool, len(tables))
	for i := range tables {
		for j := range tables[i].Columns {
			tables[i].Columns[j].Ordinal = j
		}
		if len(tables[i].PrimaryKey) == 0 {
			tables[i].PrimaryKey = nil
		}
		read[[2]string{tables[i].Schema, tables[i].Name}] = true
	}

	kept := make([]schema.ForeignKey, 0, len(fks))
	for _, fk := range fks {
		if read[[2]string{fk.ParentSchema, fk.ParentTable}] && read[[2]string{fk.ReferencedSchema, fk.ReferencedTable}] {
			kept = append(kept, fk)
		}
	}

	schema.SortTables(tables)
	schema.SortForeignKeys(kept)
	return &schema.Database{Name: name, Tables: tables, ForeignKeys: kept}
}
