package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/samuelfneumann/vrprl/agent/policy"
)

// SQL stores tables in the policy_tables table of a Postgres or SQLite
// database
type SQL struct {
	DB *sql.DB
}

var schemas = map[string]string{
	"pgx": `
	CREATE TABLE IF NOT EXISTS policy_tables (
		model      TEXT PRIMARY KEY,
		payload    BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	"sqlite": `
	CREATE TABLE IF NOT EXISTS policy_tables (
		model      TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

// OpenPostgres opens a Postgres database through the pgx driver
func OpenPostgres(ctx context.Context, url string) (*SQL, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	return newSQL(ctx, db, "pgx")
}

// OpenSQLite opens a SQLite database file
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	return newSQL(ctx, db, "sqlite")
}

// newSQL verifies the connection and creates the schema
func newSQL(ctx context.Context, db *sql.DB, driver string) (*SQL, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql store: verify %s connection: %w", driver,
			err)
	}
	if _, err := db.ExecContext(ctx, schemas[driver]); err != nil {
		db.Close()
		return nil, fmt.Errorf("sql store: create %s schema: %w", driver, err)
	}
	return &SQL{DB: db}, nil
}

// Load implements the Store interface
func (s *SQL) Load(ctx context.Context, model string) (*policy.Table, error) {
	if s.DB == nil {
		return nil, errors.New("sql load: db is nil")
	}
	if err := validateModel(model); err != nil {
		return nil, fmt.Errorf("sql load: %w", err)
	}

	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT payload FROM policy_tables WHERE model = $1`, model,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sql load %q: %w", model, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sql load %q: %w", model, err)
	}

	t, err := policy.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("sql load %q: %w", model, err)
	}
	return t, nil
}

// Save implements the Store interface, replacing any table saved under
// the same model name
func (s *SQL) Save(ctx context.Context, model string, t *policy.Table) error {
	if s.DB == nil {
		return errors.New("sql save: db is nil")
	}
	if err := validateModel(model); err != nil {
		return fmt.Errorf("sql save: %w", err)
	}

	payload, err := policy.Encode(t)
	if err != nil {
		return fmt.Errorf("sql save %q: %w", model, err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO policy_tables (model, payload, updated_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (model) DO UPDATE
	SET payload = EXCLUDED.payload,
		updated_at = EXCLUDED.updated_at`,
		model, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sql save %q: %w", model, err)
	}
	return nil
}

// Close implements the Store interface
func (s *SQL) Close() error {
	return s.DB.Close()
}
