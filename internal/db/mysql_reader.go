package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/erdschema/internal/schema"
)

// MySQLReader reads one MySQL database
type MySQLReader struct {
	client *MySQLClient
	schema string
}

// NewMySQLReader creates a new MySQL catalog reader
func NewMySQLReader(client *MySQLClient, schemaName string) *MySQLReader {
	return &MySQLReader{
		client: client,
		schema: schemaName,
	}
}

// DefaultSchema returns the database being read.
func (r *MySQLReader) DefaultSchema() string { return r.schema }

// ReadDatabase reads the specified tables, or every base table in the database.
func (r *MySQLReader) ReadDatabase(ctx context.Context, tables []string) (*schema.Database, error) {
	all, err := r.getTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	var (
		read []schema.Table
		fks  []schema.ForeignKey
	)
	for _, t := range selectTables(all, tables) {
		table, err := r.readTable(ctx, t)
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

	return newDatabase(r.schema, read, fks), nil
}

func (r *MySQLReader) getTables(ctx context.Context) ([]catalogTable, error) {
	query := `
		SELECT table_name, table_comment
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query, r.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []catalogTable
	for rows.Next() {
		var (
			name    string
			comment string
		)
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, err
		}
		tables = append(tables, catalogTable{schema: r.schema, name: name, comment: nonEmpty(comment)})
	}

	return tables, rows.Err()
}

func (r *MySQLReader) readTable(ctx context.Context, t catalogTable) (*schema.Table, error) {
	table := &schema.Table{Schema: t.schema, Name: t.name, Comment: t.comment}

	columns, err := r.readColumns(ctx, t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	table.Columns = columns

	pk, err := r.readPrimaryKey(ctx, t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key: %w", err)
	}
	table.PrimaryKey = pk

	return table, nil
}

func (r *MySQLReader) readColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT column_name, data_type, is_nullable, extra, column_comment
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query, r.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []schema.Column{}
	for rows.Next() {
		var (
			name, dataType, isNullable, extra, comment string
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &extra, &comment); err != nil {
			return nil, err
		}

		// extra reads "VIRTUAL GENERATED" or "STORED GENERATED" for generated columns;
		// "DEFAULT_GENERATED" only marks an expression default.
		extra = strings.ToUpper(extra)
		columns = append(columns, schema.Column{
			Name:       name,
			Type:       schema.NormalizeType(dataType),
			IsNullable: isNullable == "YES",
			IsComputed: strings.Contains(extra, "VIRTUAL GENERATED") || strings.Contains(extra, "STORED GENERATED"),
			Comment:    nonEmpty(comment),
		})
	}

	return columns, rows.Err()
}

func (r *MySQLReader) readPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query, r.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

func (r *MySQLReader) readForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT constraint_name, unique_constraint_schema, referenced_table_name
		FROM information_schema.referential_constraints
		WHERE constraint_schema = ? AND table_name = ?
		ORDER BY constraint_name
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query, r.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		fk := schema.ForeignKey{ParentSchema: r.schema, ParentTable: tableName}
		if err := rows.Scan(&fk.Name, &fk.ReferencedSchema, &fk.ReferencedTable); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}

	return fks, rows.Err()
}

// nonEmpty maps the empty comment MySQL reports for uncommented objects to nil.
func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
