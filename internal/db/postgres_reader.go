package db

import (
	"context"
	"fmt"

	"github.com/tordrt/erdschema/internal/schema"
)

// PostgresReader reads one PostgreSQL schema
type PostgresReader struct {
	client *PostgresClient
	schema string
}

// NewPostgresReader creates a new PostgreSQL catalog reader
func NewPostgresReader(client *PostgresClient, schemaName string) *PostgresReader {
	return &PostgresReader{
		client: client,
		schema: schemaName,
	}
}

// DefaultSchema returns the schema being read.
func (r *PostgresReader) DefaultSchema() string { return r.schema }

// ReadDatabase reads the specified tables, or every table in the schema.
func (r *PostgresReader) ReadDatabase(ctx context.Context, tables []string) (*schema.Database, error) {
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

	return newDatabase(r.client.DatabaseName(), read, fks), nil
}

func (r *PostgresReader) getTables(ctx context.Context) ([]catalogTable, error) {
	query := `
		SELECT c.relname, obj_description(c.oid, 'pg_class')
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('r', 'p') AND NOT c.relispartition
		ORDER BY c.relname
	`

	rows, err := r.client.GetConnection().Query(ctx, query, r.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []catalogTable
	for rows.Next() {
		t := catalogTable{schema: r.schema}
		if err := rows.Scan(&t.name, &t.comment); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

func (r *PostgresReader) readTable(ctx context.Context, t catalogTable) (*schema.Table, error) {
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

// readColumns uses the catalog type name (int4, varchar, my_enum) rather than the
// information_schema spelling, so user-defined types keep their own name.
func (r *PostgresReader) readColumns(ctx context.Context, tableName string) ([]schema.Column, error) {
	query := `
		SELECT
			a.attname,
			t.typname,
			NOT a.attnotnull,
			a.attgenerated <> '',
			col_description(a.attrelid, a.attnum)
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_type t ON t.oid = a.atttypid
		WHERE n.nspname = $1
			AND c.relname = $2
			AND a.attnum > 0
			AND NOT a.attisdropped
		ORDER BY a.attnum
	`

	rows, err := r.client.GetConnection().Query(ctx, query, r.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []schema.Column{}
	for rows.Next() {
		var (
			col     schema.Column
			typName string
		)
		if err := rows.Scan(&col.Name, &typName, &col.IsNullable, &col.IsComputed, &col.Comment); err != nil {
			return nil, err
		}
		col.Type = schema.NormalizeType(typName)
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (r *PostgresReader) readPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT a.attname
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, position)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		WHERE con.contype = 'p'
			AND n.nspname = $1
			AND c.relname = $2
		ORDER BY k.position
	`

	rows, err := r.client.GetConnection().Query(ctx, query, r.schema, tableName)
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

func (r *PostgresReader) readForeignKeys(ctx context.Context, tableName string) ([]schema.ForeignKey, error) {
	query := `
		SELECT con.conname, rn.nspname, rc.relname
		FROM pg_constraint con
		JOIN pg_class c ON c.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_class rc ON rc.oid = con.confrelid
		JOIN pg_namespace rn ON rn.oid = rc.relnamespace
		WHERE con.contype = 'f'
			AND n.nspname = $1
			AND c.relname = $2
		ORDER BY con.conname
	`

	rows, err := r.client.GetConnection().Query(ctx, query, r.schema, tableName)
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
