package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// InsertRefreshToken records an issued refresh token for auditing.
func (r *PGRepository) InsertRefreshToken(ctx context.Context, rec RefreshTokenRecord) error {
	const query = `INSERT INTO refresh_tokens (id, user_id, tenant_id, issued_at, expires_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, rec.ID, rec.UserID, rec.TenantID, rec.IssuedAt.UTC(), rec.ExpiresAt.UTC())
	return err
}

// DeleteRefreshToken removes the audit record, typically on logout.
func (r *PGRepository) DeleteRefreshToken(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	return err
}

// DeleteExpiredRefreshTokens sweeps records past their expiry. Run from the
// background worker.
func (r *PGRepository) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
