package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"hospital-auth/internal/domain"
)

// VerificationTokenRepository persiste códigos de un solo uso.
type VerificationTokenRepository interface {
	Create(ctx context.Context, token domain.VerificationToken) error
	// FindValid devuelve el token no expirado para (usuario, propósito), si existe.
	FindValid(ctx context.Context, userID string, purpose domain.Purpose, now time.Time) (domain.VerificationToken, error)
	DeleteExpired(ctx context.Context, userID string, purpose domain.Purpose, now time.Time) error
	// Consume borra el token en una sola sentencia atómica: de varios
	// consumidores concurrentes del mismo código, solo uno observa éxito.
	Consume(ctx context.Context, userID, code string, purpose domain.Purpose, now time.Time) error
}

// PgVerificationTokenRepository implementa VerificationTokenRepository usando pgxpool.
type PgVerificationTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgVerificationTokenRepository(pool *pgxpool.Pool) *PgVerificationTokenRepository {
	return &PgVerificationTokenRepository{pool: pool}
}

func (r *PgVerificationTokenRepository) Create(ctx context.Context, token domain.VerificationToken) error {
	const query = `
		INSERT INTO verification_tokens (id, user_id, code, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.Code,
		token.Purpose,
		token.ExpiresAt,
		token.CreatedAt,
	)
	return err
}

func (r *PgVerificationTokenRepository) FindValid(ctx context.Context, userID string, purpose domain.Purpose, now time.Time) (domain.VerificationToken, error) {
	const query = `
		SELECT id, user_id, code, purpose, expires_at, created_at
		FROM verification_tokens
		WHERE user_id = $1 AND purpose = $2 AND expires_at > $3
	`
	var t domain.VerificationToken
	err := r.pool.QueryRow(ctx, query, userID, purpose, now).Scan(
		&t.ID,
		&t.UserID,
		&t.Code,
		&t.Purpose,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.VerificationToken{}, err
	}
	return t, nil
}

func (r *PgVerificationTokenRepository) DeleteExpired(ctx context.Context, userID string, purpose domain.Purpose, now time.Time) error {
	const query = `
		DELETE FROM verification_tokens
		WHERE user_id = $1 AND purpose = $2 AND expires_at <= $3
	`
	_, err := r.pool.Exec(ctx, query, userID, purpose, now)
	return err
}

func (r *PgVerificationTokenRepository) Consume(ctx context.Context, userID, code string, purpose domain.Purpose, now time.Time) error {
	const query = `
		DELETE FROM verification_tokens
		WHERE user_id = $1 AND code = $2 AND purpose = $3 AND expires_at > $4
		RETURNING id
	`
	var id string
	return r.pool.QueryRow(ctx, query, userID, code, purpose, now).Scan(&id)
}
