package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-service/internal/domain"
)

// UserRepository defines persistence access for user accounts, including
// the failed-login bookkeeping consumed by the brute force guard.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// IncrementFailedAttempts advances the failure counter for an
	// unlocked account, transitioning it to locked instead of counting
	// past the threshold. Returns the resulting locked state, or
	// pgx.ErrNoRows when the user is missing or already locked.
	IncrementFailedAttempts(ctx context.Context, username string, threshold int) (bool, error)
	// ResetFailedAttempts zeroes the counter, unlocks the account and
	// records the successful login time.
	ResetFailedAttempts(ctx context.Context, username string) error
	SetLocked(ctx context.Context, username string, locked bool) error
	SetEnabled(ctx context.Context, username string, enabled bool) error
	ExistsAndEnabled(ctx context.Context, username string) (bool, error)
	// HasExcessFailedAttempts reports whether the stored counter strictly
	// exceeds the threshold, independent of the locked flag.
	HasExcessFailedAttempts(ctx context.Context, username string, threshold int) (bool, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `
        id, username, email, name, password_hash, role, enabled, locked,
        failed_login_attempts, last_successful_login, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, email, name, password_hash, role, enabled, locked)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	if !user.Role.Valid() {
		user.Role = domain.RoleUser
	}
	return r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.Enabled,
		user.Locked,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET email=$1, name=$2, password_hash=$3, enabled=$4, updated_at=NOW()
        WHERE username=$5`

	cmd, err := r.pool.Exec(ctx, query,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Enabled,
		user.Username,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE id=$1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE username=$1`
	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT` + userColumns + ` FROM users WHERE email=$1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// IncrementFailedAttempts runs as a single UPDATE so concurrent failures
// against the same username serialize on the row and no increment is
// lost. The counter stops at the threshold; exceeding it flips the
// locked flag instead.
func (r *userRepository) IncrementFailedAttempts(ctx context.Context, username string, threshold int) (bool, error) {
	const query = `
        UPDATE users SET
            locked = failed_login_attempts + 1 > $2,
            failed_login_attempts = CASE
                WHEN failed_login_attempts + 1 > $2 THEN failed_login_attempts
                ELSE failed_login_attempts + 1
            END,
            updated_at = NOW()
        WHERE username = $1 AND locked = FALSE
        RETURNING locked`

	var locked bool
	if err := r.pool.QueryRow(ctx, query, username, threshold).Scan(&locked); err != nil {
		return false, err
	}
	return locked, nil
}

func (r *userRepository) ResetFailedAttempts(ctx context.Context, username string) error {
	const query = `
        UPDATE users SET
            failed_login_attempts = 0,
            locked = FALSE,
            last_successful_login = NOW(),
            updated_at = NOW()
        WHERE username = $1`

	cmd, err := r.pool.Exec(ctx, query, username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetLocked(ctx context.Context, username string, locked bool) error {
	const query = `UPDATE users SET locked=$1, updated_at=NOW() WHERE username=$2`

	cmd, err := r.pool.Exec(ctx, query, locked, username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetEnabled(ctx context.Context, username string, enabled bool) error {
	const query = `UPDATE users SET enabled=$1, updated_at=NOW() WHERE username=$2`

	cmd, err := r.pool.Exec(ctx, query, enabled, username)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ExistsAndEnabled(ctx context.Context, username string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM users WHERE username=$1 AND enabled=TRUE AND locked=FALSE
        )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) HasExcessFailedAttempts(ctx context.Context, username string, threshold int) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM users WHERE username=$1 AND failed_login_attempts > $2
        )`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, username, threshold).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *userRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&user.Enabled,
		&user.Locked,
		&user.FailedLoginAttempts,
		&user.LastSuccessfulLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
