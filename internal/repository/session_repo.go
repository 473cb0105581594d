package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hospital-auth/internal/domain"
)

// SessionRepository lleva el libro contable de access tokens emitidos.
// No participa en la validación de tokens: es registro para auditoría.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	DeleteExpired(ctx context.Context, userID string, now time.Time) error
}

// PgSessionRepository implementa SessionRepository usando pgxpool.
type PgSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSessionRepository(pool *pgxpool.Pool) *PgSessionRepository {
	return &PgSessionRepository{pool: pool}
}

func (r *PgSessionRepository) Create(ctx context.Context, session domain.Session) error {
	const query = `
		INSERT INTO sessions (id, user_id, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt,
		session.CreatedAt,
	)
	return err
}

func (r *PgSessionRepository) DeleteExpired(ctx context.Context, userID string, now time.Time) error {
	const query = `DELETE FROM sessions WHERE user_id = $1 AND expires_at < $2`
	_, err := r.pool.Exec(ctx, query, userID, now)
	return err
}
