// Package store persists policy tables between runs. A Store saves and
// loads tables under model names; the backends are a directory of gob
// files, a SQL database (Postgres or SQLite), and Redis.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/samuelfneumann/vrprl/agent/policy"
)

// ErrNotFound is returned when no table is saved under a model name
var ErrNotFound = errors.New("model not found")

// Store saves and loads policy tables by model name
type Store interface {
	Load(ctx context.Context, model string) (*policy.Table, error)
	Save(ctx context.Context, model string, t *policy.Table) error
	Close() error
}

// Open opens the store addressed by url:
//
//	postgres://... or postgresql://...  Postgres
//	sqlite://path                       SQLite database file
//	redis://... or rediss://...         Redis
//	file://dir or dir                   directory of gob files
func Open(ctx context.Context, url string) (Store, error) {
	var s Store
	var err error

	switch {
	case url == "":
		return nil, errors.New("open store: empty url")
	case strings.HasPrefix(url, "postgres://"),
		strings.HasPrefix(url, "postgresql://"):
		s, err = OpenPostgres(ctx, url)
	case strings.HasPrefix(url, "sqlite://"):
		s, err = OpenSQLite(ctx, strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		s, err = OpenRedis(ctx, url)
	default:
		s, err = NewFile(strings.TrimPrefix(url, "file://"))
	}

	if err != nil {
		return nil, err
	}
	return s, nil
}

// Restore loads the table saved under model into m. It returns whether
// a table was restored; a missing, corrupt, or mismatched table is
// logged and leaves m unchanged so that the caller can seed it instead.
func Restore(ctx context.Context, s Store, model string,
	m *policy.Manager) bool {
	t, err := s.Load(ctx, model)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Printf("store: model=%s not found, seeding a new policy", model)
		return false
	case err != nil:
		log.Printf("store: model=%s could not be loaded, seeding a new "+
			"policy: %v", model, err)
		return false
	}

	if err := m.SetTable(t); err != nil {
		log.Printf("store: model=%s does not fit the stops, seeding a new "+
			"policy: %v", model, err)
		return false
	}
	log.Printf("store: model=%s restored", model)
	return true
}

// validateModel returns an error for model names that cannot be stored
func validateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return errors.New("model name must not be empty")
	}
	if strings.ContainsAny(model, `/\`) {
		return fmt.Errorf("model name %q must not contain path separators",
			model)
	}
	return nil
}
