package db

import (
	"context"
	"fmt"

	"github.com/tordrt/erdschema/internal/schema"
)

// sqliteSchema is the name SQLite gives the primary database.
const sqliteSchema = "main"

// SQLiteReader reads the main database of a SQLite file
type SQLiteReader struct {
	client *SQLiteClient
	name   string
}

// NewSQLiteReader creates a new SQLite catalog reader. name becomes the database name
// of the result.
func NewSQLiteReader(client *SQLiteClient, name string) *SQLiteReader {
	return &SQLiteReader{
		client: client,
		name:   name,
	}
}

// DefaultSchema returns "main".
func (r *SQLiteReader) DefaultSchema() string { return sqliteSchema }

// ReadDatabase reads the specified tables, or every user table.
func (r *SQLiteReader) ReadDatabase(ctx context.Context, tables []string) (*schema.Database, error) {
	all, err := r.getTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	var (
		read []schema.Table
		fks  []schema.ForeignKey
	)
	for _, t := range selectTables(all, tables) {
		table, err := r.readTable(ctx, t.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", t.name, err)
		}
		read = append(read, *table)

		tableFKs, err := r.readForeignKeys(ctx, t.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read foreign keys of %s: %w", t.name, err)
		}
		fks = append(fks, tableFKs...)
	}

	return newDatabase(r.name, read, fks), nil
}

func (r *SQLiteReader) getTables(ctx context.Context) ([]catalogTable, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []catalogTable
	for rows.Next() {
		t := catalogTable{schema: sqliteSchema}
		if err := rows.Scan(&t.name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

// readTable reads columns and primary key in one pass over table_xinfo. SQLite
// allows NULL in non-integer primary key columns, but the canonical model treats key
// columns as not null.
func (r *SQLiteReader) readTable(ctx context.Context, tableName string) (*schema.Table, error) {
	query := `
		SELECT name, type, "notnull", pk, hidden
		FROM pragma_table_xinfo(?)
		ORDER BY cid
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	table := &schema.Table{Schema: sqliteSchema, Name: tableName, Columns: []schema.Column{}}
	keyPositions := map[int]string{}
	for rows.Next() {
		var (
			name, dataType      string
			notNull, pk, hidden int
		)
		if err := rows.Scan(&name, &dataType, &notNull, &pk, &hidden); err != nil {
			return nil, err
		}
		// hidden: 1 for virtual table hidden columns, 2 and 3 for generated columns.
		if hidden == 1 {
			continue
		}

		table.Columns = append(table.Columns, schema.Column{
			Name:       name,
			Type:       schema.NormalizeType(dataType),
			IsNullable: notNull == 0 && pk == 0,
			IsComputed: hidden == 2 || hidden == 3,
		})
		if pk > 0 {
			keyPositions[pk] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := 1; i <= len(keyPositions); i++ {
		table.PrimaryKey = append(table.PrimaryKey, keyPositions[i])
	}

	return table, nil
}

// readForeignKeys groups foreign_key_list rows by constraint id. SQLite does not keep
// constraint names, so they are synthesized as FK_<table>_<referenced>, with the id
// appended when a table references the same table twice.
func (r *SQLiteReader) readForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT DISTINCT id, "table"
		FROM pragma_foreign_key_list(?)
		ORDER BY id
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	used := map[string]bool{}
	for rows.Next() {
		var (
			id         int
			referenced string
		)
		if err := rows.Scan(&id, &referenced); err != nil {
			return nil, err
		}

		name := fmt.Sprintf("FK_%s_%s", tableName, referenced)
		if used[name] {
			name = fmt.Sprintf("%s_%d", name, id)
		}
		used[name] = true

		fks = append(fks, schema.ForeignKey{
			Name:             name,
			ParentSchema:     sqliteSchema,
			ParentTable:      tableName,
			ReferencedSchema: sqliteSchema,
			ReferencedTable:  referenced,
		})
	}

	return fks, rows.Err()
}
