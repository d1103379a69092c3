package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tordrt/erdschema/internal/schema"
)

// SQLServerReader reads the user tables of a SQL Server database. Table and column
// comments come from MS_Description extended properties.
type SQLServerReader struct {
	client *SQLServerClient
	schema string
}

// NewSQLServerReader creates a new SQL Server catalog reader. An empty schemaName
// reads every schema.
func NewSQLServerReader(client *SQLServerClient, schemaName string) *SQLServerReader {
	return &SQLServerReader{
		client: client,
		schema: schemaName,
	}
}

// DefaultSchema returns dbo unless the reader is restricted to another schema.
func (r *SQLServerReader) DefaultSchema() string {
	if r.schema != "" {
		return r.schema
	}
	return schema.DefaultSchema
}

// ReadDatabase reads the specified tables, or every table not shipped with the server.
// Names may be schema-qualified.
func (r *SQLServerReader) ReadDatabase(ctx context.Context, tables []string) (*schema.Database, error) {
	var name string
	if err := r.client.GetDB().QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&name); err != nil {
		return nil, fmt.Errorf("failed to get database name: %w", err)
	}

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
			return nil, fmt.Errorf("failed to read table %s.%s: %w", t.schema, t.name, err)
		}
		read = append(read, *table)

		tableFKs, err := r.readForeignKeys(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to read foreign keys of %s.%s: %w", t.schema, t.name, err)
		}
		fks = append(fks, tableFKs...)
	}

	return newDatabase(name, read, fks), nil
}

func (r *SQLServerReader) getTables(ctx context.Context) ([]catalogTable, error) {
	query := `
		SELECT s.name, t.name, CAST(ep.value AS nvarchar(max))
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.class = 1 AND ep.major_id = t.object_id AND ep.minor_id = 0 AND ep.name = @property
		WHERE t.is_ms_shipped = 0 AND (@schema = '' OR s.name = @schema)
		ORDER BY s.name, t.name
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query,
		sql.Named("property", schema.CommentProperty),
		sql.Named("schema", r.schema),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []catalogTable
	for rows.Next() {
		var (
			t       catalogTable
			comment sql.NullString
		)
		if err := rows.Scan(&t.schema, &t.name, &comment); err != nil {
			return nil, err
		}
		t.comment = nullString(comment)
		tables = append(tables, t)
	}

	return tables, rows.Err()
}

func (r *SQLServerReader) readTable(ctx context.Context, t catalogTable) (*schema.Table, error) {
	table := &schema.Table{Schema: t.schema, Name: t.name, Comment: t.comment}

	columns, err := r.readColumns(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	table.Columns = columns

	pk, err := r.readPrimaryKey(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key: %w", err)
	}
	table.PrimaryKey = pk

	return table, nil
}

// readColumns reports user_type_id names, so alias types appear under their own name
// and nvarchar(max) reads as nvarchar.
func (r *SQLServerReader) readColumns(ctx context.Context, t catalogTable) ([]schema.Column, error) {
	query := `
		SELECT c.name, ty.name, c.is_nullable, c.is_computed, CAST(ep.value AS nvarchar(max))
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.extended_properties ep
			ON ep.class = 1 AND ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.name = @property
		WHERE s.name = @schema AND t.name = @table
		ORDER BY c.column_id
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query,
		sql.Named("property", schema.CommentProperty),
		sql.Named("schema", t.schema),
		sql.Named("table", t.name),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := []schema.Column{}
	for rows.Next() {
		var (
			col      schema.Column
			typeName string
			comment  sql.NullString
		)
		if err := rows.Scan(&col.Name, &typeName, &col.IsNullable, &col.IsComputed, &comment); err != nil {
			return nil, err
		}
		col.Type = schema.NormalizeType(typeName)
		col.Comment = nullString(comment)
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (r *SQLServerReader) readPrimaryKey(ctx context.Context, t catalogTable) ([]string, error) {
	query := `
		SELECT c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE i.is_primary_key = 1 AND s.name = @schema AND t.name = @table
		ORDER BY ic.key_ordinal
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query,
		sql.Named("schema", t.schema),
		sql.Named("table", t.name),
	)
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

func (r *SQLServerReader) readForeignKeys(ctx context.Context, t catalogTable) ([]schema.ForeignKey, error) {
	query := `
		SELECT fk.name, rs.name, rt.name
		FROM sys.foreign_keys fk
		JOIN sys.tables pt ON pt.object_id = fk.parent_object_id
		JOIN sys.schemas ps ON ps.schema_id = pt.schema_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		WHERE ps.name = @schema AND pt.name = @table AND rt.is_ms_shipped = 0
		ORDER BY fk.name
	`

	rows, err := r.client.GetDB().QueryContext(ctx, query,
		sql.Named("schema", t.schema),
		sql.Named("table", t.name),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		fk := schema.ForeignKey{ParentSchema: t.schema, ParentTable: t.name}
		if err := rows.Scan(&fk.Name, &fk.ReferencedSchema, &fk.ReferencedTable); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}

	return fks, rows.Err()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
