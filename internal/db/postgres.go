package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// applicationName identifies catalog sessions in pg_stat_activity.
const applicationName = "erdschema"

// PostgresClient holds a read-only connection to one PostgreSQL database
type PostgresClient struct {
	conn     *pgx.Conn
	database string
}

// NewPostgresClient connects with every transaction read-only. Settings given in
// connString take precedence.
func NewPostgresClient(ctx context.Context, connString string) (*PostgresClient, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if _, ok := cfg.RuntimeParams["application_name"]; !ok {
		cfg.RuntimeParams["application_name"] = applicationName
	}
	if _, ok := cfg.RuntimeParams["default_transaction_read_only"]; !ok {
		cfg.RuntimeParams["default_transaction_read_only"] = "on"
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{conn: conn, database: cfg.Database}, nil
}

// Close closes the connection
func (c *PostgresClient) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// GetConnection returns the underlying connection
func (c *PostgresClient) GetConnection() *pgx.Conn {
	return c.conn
}

// DatabaseName returns the database named in the connection string.
func (c *PostgresClient) DatabaseName() string {
	return c.database
}
