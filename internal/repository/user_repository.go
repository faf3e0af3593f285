package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// UserRepository defines persistence access for accounts. Email lookups
// take the encrypted value; the deterministic cipher makes equality on
// ciphertext equivalent to equality on plaintext.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetActiveByEmail(ctx context.Context, encryptedEmail string) (*domain.User, error)
	ExistsActiveEmail(ctx context.Context, encryptedEmail string) (bool, error)
	SetExternalID(ctx context.Context, userID, externalID int64) error
	UpdatePassword(ctx context.Context, userID int64, encryptedHash string) error
	Deactivate(ctx context.Context, userID int64) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, surname, phone, email, password, role, COALESCE(external_id, 0), is_active, created_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, surname, phone, email, password, role, external_id, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, 0), $8)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		user.Name,
		user.Surname,
		user.Phone,
		user.Email,
		user.Password,
		user.Role,
		user.ExternalID,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetActiveByEmail(ctx context.Context, encryptedEmail string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1 AND is_active`
	return r.fetchSingle(ctx, query, encryptedEmail)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Surname,
		&user.Phone,
		&user.Email,
		&user.Password,
		&user.Role,
		&user.ExternalID,
		&user.IsActive,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsActiveEmail(ctx context.Context, encryptedEmail string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 AND is_active)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, encryptedEmail).Scan(&exists)
	return exists, err
}

// SetExternalID records the provider customer id. Re-running with the
// same id is a no-op, so concurrent resolutions stay safe.
func (r *userRepository) SetExternalID(ctx context.Context, userID, externalID int64) error {
	const query = `UPDATE users SET external_id=NULLIF($2, 0) WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, userID, externalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID int64, encryptedHash string) error {
	const query = `UPDATE users SET password=$2 WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, userID, encryptedHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) Deactivate(ctx context.Context, userID int64) error {
	const query = `UPDATE users SET is_active=FALSE WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
