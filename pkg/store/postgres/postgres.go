// Package postgres provides PostgreSQL-backed ledger and account master tables.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArionMiles/paynotify/pkg/api"
)

//go:embed 001_create_tables.sql
var schemaSQL string

// Table describes one append-only table. Rows are ordered by their seq column.
type Table struct {
	Name    string
	Columns []string
}

// Tables used by paynotify, with columns in api.LedgerColumns / api.MasterColumns order.
var (
	LedgerTable = Table{
		Name:    "ledger",
		Columns: []string{"txn_date", "contents", "amount", "account", "sub_account", "notified_at"},
	}
	MasterTable = Table{
		Name:    "account_master",
		Columns: []string{"account", "sub_account", "alias", "icon", "notify_enabled"},
	}
)

// Config holds the PostgreSQL connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string

	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize int
}

// DB is a connection pool shared by the tables.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to PostgreSQL and ensures both tables exist.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 4
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.Database,
	)

	db := &DB{pool: pool, logger: logger}
	if err := db.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return db, nil
}

func (db *DB) ensureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	db.logger.Debug("schema ready")
	return nil
}

// Table returns a TableStore for t.
func (db *DB) Table(t Table) *TableStore {
	return &TableStore{db: db, table: t}
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
		db.logger.Info("closed PostgreSQL connection pool")
	}
}

// TableStore reads and appends rows of one table.
type TableStore struct {
	db    *DB
	table Table
}

// ReadRows returns all rows in insertion order.
func (s *TableStore) ReadRows(ctx context.Context) ([][]string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq",
		s.columnList(), pgx.Identifier{s.table.Name}.Sanitize())

	rows, err := s.db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table.Name, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		row := make([]string, len(s.table.Columns))
		dest := make([]any, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", s.table.Name, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s rows: %w", s.table.Name, err)
	}
	return out, nil
}

// AppendRows inserts rows in one transaction, preserving their order.
func (s *TableStore) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	placeholders := make([]string, len(s.table.Columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{s.table.Name}.Sanitize(), s.columnList(), strings.Join(placeholders, ", "))

	batch := &pgx.Batch{}
	for _, r := range rows {
		args := make([]any, len(s.table.Columns))
		for i := range args {
			if i < len(r) {
				args[i] = r[i]
			} else {
				args[i] = ""
			}
		}
		batch.Queue(insert, args...)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("inserting %s row %d: %w", s.table.Name, i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.db.logger.Info("appended rows", "table", s.table.Name, "count", len(rows))
	return nil
}

func (s *TableStore) columnList() string {
	cols := make([]string, len(s.table.Columns))
	for i, c := range s.table.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(cols, ", ")
}

var _ api.TableStore = (*TableStore)(nil)
