package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/useradmin-console/internal/model"
)

var _ model.StateStore = (*StateRepository)(nil)

// dbtx is the part of the pool the repository uses.
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// StateRepository stores console state rows scoped by namespace, so several
// operators can share one database.
type StateRepository struct {
	db        dbtx
	namespace string
}

func NewStateRepository(db *Connection, namespace string) *StateRepository {
	return &StateRepository{db: db, namespace: namespace}
}

func (r *StateRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value FROM console_state WHERE namespace = $1 AND key = $2`

	var value []byte
	err := r.db.QueryRow(ctx, query, r.namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get state %q: %w", key, err)
	}

	return value, nil
}

func (r *StateRepository) Put(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO console_state (namespace, key, value, updated_at)
			  VALUES ($1, $2, $3, now())
			  ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	if _, err := r.db.Exec(ctx, query, r.namespace, key, value); err != nil {
		return fmt.Errorf("failed to put state %q: %w", key, err)
	}

	return nil
}

func (r *StateRepository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM console_state WHERE namespace = $1 AND key = $2`

	if _, err := r.db.Exec(ctx, query, r.namespace, key); err != nil {
		return fmt.Errorf("failed to delete state %q: %w", key, err)
	}

	return nil
}
