package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"typing-premium-payments/internal/domain"
	"typing-premium-payments/internal/domain/model"
	"typing-premium-payments/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := forUpdate(`
SELECT id, email, is_admin, is_premium, premium_expires_at, ai_feedback_quota, paragraph_quota, updated_at
  FROM users WHERE id=$1`, tx) + ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.IsAdmin, &u.IsPremium, &u.PremiumExpiresAt, &u.Quotas.AIFeedback, &u.Quotas.Paragraphs, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &u, nil
}

func (r *PostgresUserRepo) SavePremium(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
UPDATE users
   SET is_premium=$2, premium_expires_at=$3, ai_feedback_quota=$4, paragraph_quota=$5, updated_at=$6
 WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, u.ID, u.IsPremium, u.PremiumExpiresAt, u.Quotas.AIFeedback, u.Quotas.Paragraphs, u.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) ListAdminIDs(ctx context.Context, tx repository.Tx) ([]string, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT id FROM users WHERE is_admin ORDER BY id;`)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return ids, nil
}

func (r *PostgresUserRepo) DemoteExpiredPremiums(ctx context.Context, tx repository.Tx, now time.Time, base model.Quotas) (int, error) {
	const q = `
UPDATE users
   SET is_premium=FALSE, ai_feedback_quota=$2, paragraph_quota=$3, updated_at=$1
 WHERE is_premium AND premium_expires_at IS NOT NULL AND premium_expires_at <= $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, now, base.AIFeedback, base.Paragraphs)
	if err != nil {
		return 0, mapExecErr(err)
	}
	return int(tag.RowsAffected()), nil
}

// Upsert creates u or refreshes its email and admin flag. Premium fields of
// an existing row are left alone. Accounts normally arrive from the typing
// app; this serves local seeding.
func (r *PostgresUserRepo) Upsert(ctx context.Context, tx repository.Tx, u *model.User, base model.Quotas) error {
	const q = `
INSERT INTO users (id, email, is_admin, ai_feedback_quota, paragraph_quota, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW())
ON CONFLICT (id) DO UPDATE
   SET email=EXCLUDED.email, is_admin=EXCLUDED.is_admin, updated_at=NOW();`
	if u.ID == "" {
		return domain.ErrInvalidArgument
	}
	if _, err := execSQL(ctx, r.pool, tx, q, u.ID, u.Email, u.IsAdmin, base.AIFeedback, base.Paragraphs); err != nil {
		return mapExecErr(err)
	}
	return nil
}
