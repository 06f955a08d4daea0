package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"treasure-map/internal/domain/pending"
)

const pendingSchema = `
    CREATE TABLE IF NOT EXISTS pending_actions (
        visitor_id  TEXT PRIMARY KEY,
        action      TEXT NOT NULL,
        expires_at  TIMESTAMPTZ NOT NULL
    )
`

type PendingRepo struct {
	db  *sqlx.DB
	ttl time.Duration
}

func NewPendingRepo(db *sql.DB, ttl time.Duration) *PendingRepo {
	if ttl <= 0 {
		ttl = pending.DefaultTTL
	}
	return &PendingRepo{db: sqlx.NewDb(db, "pgx"), ttl: ttl}
}

func (r *PendingRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, pendingSchema)
	return err
}

func (r *PendingRepo) Save(ctx context.Context, key string, a pending.Action) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO pending_actions (visitor_id, action, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (visitor_id) DO UPDATE
        SET action = EXCLUDED.action,
            expires_at = EXCLUDED.expires_at
    `, key, a.String(), time.Now().Add(r.ttl))
	return err
}

type pendingRow struct {
	Action    string    `db:"action"`
	ExpiresAt time.Time `db:"expires_at"`
}

// Take deletes the row and hands back what it held, so a second Take
// for the same visitor finds nothing.
func (r *PendingRepo) Take(ctx context.Context, key string) (pending.Action, error) {
	var row pendingRow
	err := r.db.GetContext(ctx, &row, `
        DELETE FROM pending_actions
        WHERE visitor_id = $1
        RETURNING action, expires_at
    `, key)
	if errors.Is(err, sql.ErrNoRows) {
		return pending.Action{}, pending.ErrNotFound
	}
	if err != nil {
		return pending.Action{}, err
	}
	if time.Now().After(row.ExpiresAt) {
		return pending.Action{}, pending.ErrNotFound
	}
	return pending.ParseAction(row.Action)
}

func (r *PendingRepo) Discard(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE visitor_id = $1`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pending.ErrNotFound
	}
	return nil
}

// PurgeExpired removes rows nobody came back for.
func (r *PendingRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
