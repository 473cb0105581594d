package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hospital-auth/internal/domain"
)

// ErrDuplicateUser señala una violación de unicidad en email, phone o provider_id.
var ErrDuplicateUser = errors.New("duplicate user")

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByKey(ctx context.Context, key domain.LookupKey) (domain.User, error)
	UpdateProfile(ctx context.Context, id string, name, phone, avatar *string) (domain.User, error)
	SetEmailVerified(ctx context.Context, id string, at time.Time) error
	SetPhoneVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) (domain.User, error)
	SoftDelete(ctx context.Context, id string) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

const userColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(password_hash, ''), COALESCE(avatar, ''), COALESCE(provider, ''),
	COALESCE(provider_id, ''), role, email_verified_at, phone_verified_at,
	is_deleted, created_at, updated_at`

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, name, email, phone, password_hash, avatar, provider,
			provider_id, role, email_verified_at, phone_verified_at, is_deleted,
			created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $13, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Avatar,
		user.Provider,
		user.ProviderID,
		user.Role,
		user.EmailVerifiedAt,
		user.PhoneVerifiedAt,
		user.IsDeleted,
		user.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetByKey resuelve una LookupKey a exactamente una consulta sobre un campo.
func (r *PgUserRepository) GetByKey(ctx context.Context, key domain.LookupKey) (domain.User, error) {
	switch key.Kind {
	case domain.LookupByEmail:
		return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, key.Email)
	case domain.LookupByPhone:
		return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, key.Phone)
	case domain.LookupByProvider:
		return r.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE provider_id = $1`, key.ProviderID)
	default:
		return domain.User{}, pgx.ErrNoRows
	}
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id string, name, phone, avatar *string) (domain.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			avatar = COALESCE($4, avatar),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := r.scanOne(ctx, query, id, name, phone, avatar)
	if isUniqueViolation(err) {
		return domain.User{}, ErrDuplicateUser
	}
	return user, err
}

func (r *PgUserRepository) SetEmailVerified(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET email_verified_at = $2, updated_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

func (r *PgUserRepository) SetPhoneVerified(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET phone_verified_at = $2, updated_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

func (r *PgUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, passwordHash)
	return err
}

func (r *PgUserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) (domain.User, error) {
	query := `
		UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.scanOne(ctx, query, id, role)
}

func (r *PgUserRepository) SoftDelete(ctx context.Context, id string) (domain.User, error) {
	query := `
		UPDATE users SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.scanOne(ctx, query, id)
}

func (r *PgUserRepository) List(ctx context.Context) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_deleted = FALSE ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PgUserRepository) scanOne(ctx context.Context, query string, args ...any) (domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.Avatar,
		&u.Provider,
		&u.ProviderID,
		&u.Role,
		&u.EmailVerifiedAt,
		&u.PhoneVerifiedAt,
		&u.IsDeleted,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
