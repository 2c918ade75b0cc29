// Package store reads accounts and recipients from PostgreSQL for dispatch
// runs.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cenderhq/cender/pkg/dispatch"
)

// Store implements the directory lookups dispatch runs need.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// AccountExists reports whether the account owner exists.
func (s *Store) AccountExists(ctx context.Context, ownerID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`,
		ownerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: account exists: %w", err)
	}
	return exists, nil
}

// Recipients returns the subset of the requested recipients that belong to
// the account owner. Ids that do not resolve are simply absent from the
// result; the caller decides what a missing id means.
func (s *Store) Recipients(ctx context.Context, ownerID int64, ids []int64) ([]dispatch.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, email, first_name, last_name, company
		FROM recipients
		WHERE account_owner_id = $1 AND id = ANY($2)`,
		ownerID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list recipients: %w", err)
	}
	defer rows.Close()

	var out []dispatch.Recipient
	for rows.Next() {
		var r dispatch.Recipient
		if err := rows.Scan(&r.ID, &r.Email, &r.FirstName, &r.LastName, &r.Company); err != nil {
			return nil, fmt.Errorf("store: scan recipient: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list recipients: %w", err)
	}
	return out, nil
}
