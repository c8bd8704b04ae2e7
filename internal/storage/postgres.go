package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// OpenPostgres opens and pings a PostgreSQL connection pool.
func OpenPostgres(ctx context.Context, cfg *PostgresConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return db, nil
}

// PostgresLogSink implements LogSink using PostgreSQL.
type PostgresLogSink struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresLogSink creates a log sink over an open database.
func NewPostgresLogSink(db *sql.DB, logger *zap.Logger) *PostgresLogSink {
	return &PostgresLogSink{
		db:     db,
		logger: logger,
	}
}

// Append stores a log entry in PostgreSQL.
func (p *PostgresLogSink) Append(ctx context.Context, entry LogEntry) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO logs (message, timestamp) VALUES ($1, $2)`,
		entry.Message, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}

	return nil
}

// Recent returns the newest entries first.
func (p *PostgresLogSink) Recent(ctx context.Context, limit int) ([]LogEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT message, timestamp FROM logs ORDER BY timestamp DESC, id DESC LIMIT $1`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]LogEntry, 0)
	for rows.Next() {
		var entry LogEntry
		err = rows.Scan(&entry.Message, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}

	return entries, nil
}

// Ping checks the database connection.
func (p *PostgresLogSink) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *PostgresLogSink) Close() error {
	p.logger.Info("closing-postgres-log-sink")
	return p.db.Close()
}
