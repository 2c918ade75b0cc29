package deliverylog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed delivery log.
// Write serialization per account owner is delegated to the database's
// transaction isolation; the repo itself holds no locks.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo creates a delivery log repo over the given connection pool.
func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// SentKeys returns the (recipientID, email) pairs with a SENT record for the
// account owner. Records with a removed recipient still contribute their
// address.
func (r *Repo) SentKeys(ctx context.Context, ownerID int64) (KeySet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT recipient_id, recipient_email
		 FROM delivery_log
		 WHERE account_owner_id = $1 AND status = $2`,
		ownerID, StatusSent)
	if err != nil {
		return KeySet{}, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	keys := NewKeySet()
	for rows.Next() {
		var recipientID *int64
		var email string
		if err := rows.Scan(&recipientID, &email); err != nil {
			return KeySet{}, errors.Join(ErrQueryFailed, err)
		}
		if recipientID != nil {
			keys.IDs[*recipientID] = struct{}{}
		}
		keys.Emails[email] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return KeySet{}, errors.Join(ErrQueryFailed, err)
	}
	return keys, nil
}

// Append inserts one record. The id is generated here when unset.
func (r *Repo) Append(ctx context.Context, rec Record) error {
	if !rec.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, rec.Status)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}

	var errMsg *string
	if rec.ErrorMessage != "" {
		errMsg = &rec.ErrorMessage
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO delivery_log
		 (id, account_owner_id, recipient_id, recipient_email, subject, status, sent_at, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.AccountOwnerID, rec.RecipientID, rec.RecipientEmail,
		rec.Subject, rec.Status, rec.SentAt, errMsg)
	if err != nil {
		return errors.Join(ErrAppendFailed, err)
	}
	return nil
}

// List returns the account owner's records, newest first, optionally
// filtered by status.
func (r *Repo) List(ctx context.Context, ownerID int64, limit int, status *Status) ([]Record, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *status)
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, account_owner_id, recipient_id, recipient_email, subject, status, sent_at, error_message
	          FROM delivery_log
	          WHERE account_owner_id = $1`
	args := []any{ownerID}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY sent_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var errMsg *string
		if err := rows.Scan(&rec.ID, &rec.AccountOwnerID, &rec.RecipientID,
			&rec.RecipientEmail, &rec.Subject, &rec.Status, &rec.SentAt, &errMsg); err != nil {
			return nil, errors.Join(ErrQueryFailed, err)
		}
		if errMsg != nil {
			rec.ErrorMessage = *errMsg
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return records, nil
}

// Stats aggregates delivery counts for the account owner.
func (r *Repo) Stats(ctx context.Context, ownerID int64) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE status = $2),
		   COUNT(*) FILTER (WHERE status = $3),
		   COUNT(*) FILTER (WHERE status = $4)
		 FROM delivery_log
		 WHERE account_owner_id = $1`,
		ownerID, StatusSent, StatusFailed, StatusSkipped,
	).Scan(&s.TotalSent, &s.TotalFailed, &s.TotalSkipped)
	if err != nil {
		return Stats{}, errors.Join(ErrQueryFailed, err)
	}
	s.TotalEmails = s.TotalSent + s.TotalFailed + s.TotalSkipped
	return s, nil
}

// Purge deletes the account owner's records matching the filter and returns
// the number of deleted rows. An empty filter is rejected so a missing query
// parameter can never wipe the whole log.
func (r *Repo) Purge(ctx context.Context, ownerID int64, f Filter) (int64, error) {
	if f.Empty() {
		return 0, ErrNoFilter
	}
	if f.Status != nil && !f.Status.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, *f.Status)
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM delivery_log WHERE account_owner_id = $1")
	args := []any{ownerID}
	if f.RecipientID != nil {
		args = append(args, *f.RecipientID)
		fmt.Fprintf(&sb, " AND recipient_id = $%d", len(args))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if f.Before != nil {
		args = append(args, *f.Before)
		fmt.Fprintf(&sb, " AND sent_at < $%d", len(args))
	}

	tag, err := r.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}
	return tag.RowsAffected(), nil
}

// PurgeExpired deletes records older than the cutoff across all accounts.
// Used by the retention sweep. Note that purging "sent" rows re-enables
// delivery to those recipients, which is the intended effect of retention:
// an outreach older than the window may be repeated.
func (r *Repo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM delivery_log WHERE sent_at < $1`, before)
	if err != nil {
		return 0, errors.Join(ErrQueryFailed, err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a single record, scoped to the account owner so one owner
// cannot delete another owner's audit trail.
func (r *Repo) Delete(ctx context.Context, ownerID int64, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM delivery_log WHERE id = $1 AND account_owner_id = $2`,
		id, ownerID)
	if err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
