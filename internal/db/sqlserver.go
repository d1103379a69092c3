package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
)

// SQLServerClient manages the connection to SQL Server
type SQLServerClient struct {
	db *sql.DB
}

// NewSQLServerClient creates a new SQL Server client. connString may be a
// sqlserver:// URL or an ADO-style key/value string.
func NewSQLServerClient(ctx context.Context, connString string) (*SQLServerClient, error) {
	db, err := sql.Open("sqlserver", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLServerClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLServerClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLServerClient) GetDB() *sql.DB {
	return c.db
}
