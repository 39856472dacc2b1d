package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/natours/api/internal/apifeatures"
	"github.com/natours/api/types"
)

// Credential columns are not listable.
var userResource = resource{
	from:   "users",
	fields: []string{"id", "name", "email", "photo", "role", "createdAt", "updatedAt"},
	columns: map[string]column{
		"id":        {name: "id"},
		"name":      {name: "name"},
		"email":     {name: "email"},
		"photo":     {name: "photo"},
		"role":      {name: "role"},
		"createdAt": {name: "created_at"},
		"updatedAt": {name: "updated_at"},
	},
}

const userColumns = `id, name, email, photo, role, password_hash, password_changed_at,
	password_reset_token, password_reset_expires, active, created_at, updated_at`

// UserRepository handles persistence for users. Deactivated users are
// invisible to every lookup.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) List(ctx context.Context, q apifeatures.Query) ([]types.User, error) {
	stmt := buildSelect(userResource, q, predicate{column: "active", value: true})
	rows, err := r.db.QueryContext(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user := types.User{Active: true}
		dest := make([]any, len(stmt.fields))
		for i, field := range stmt.fields {
			dest[i] = userField(&user, field)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND active`
	return r.getOne(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND active`
	return r.getOne(ctx, query, normalizeEmail(email))
}

func (r *UserRepository) GetByResetTokenHash(ctx context.Context, hash string) (types.User, error) {
	if hash == "" {
		return types.User{}, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE password_reset_token = $1 AND active`
	return r.getOne(ctx, query, hash)
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Active = true
	if user.Photo == "" {
		user.Photo = types.DefaultPhoto
	}
	if user.Role == "" {
		user.Role = types.RoleUser
	}

	const query = `
		INSERT INTO users (name, email, photo, role, password_hash, password_changed_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.Photo,
		user.Role,
		user.PasswordHash,
		user.PasswordChangedAt,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translateError(err)
	}
	return user, nil
}

// UpdateProfile changes the self-service fields.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name, email string) (types.User, error) {
	const query = `
		UPDATE users
		SET name = $1,
			email = $2,
			updated_at = $3
		WHERE id = $4 AND active`
	if err := r.execOne(ctx, query, name, normalizeEmail(email), time.Now().UTC(), id); err != nil {
		return types.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) UpdatePhoto(ctx context.Context, id int64, photo string) (types.User, error) {
	const query = `UPDATE users SET photo = $1, updated_at = $2 WHERE id = $3 AND active`
	if err := r.execOne(ctx, query, photo, time.Now().UTC(), id); err != nil {
		return types.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) SetPasswordResetToken(ctx context.Context, id int64, hash string, expires time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token = $1,
			password_reset_expires = $2
		WHERE id = $3 AND active`
	return r.execOne(ctx, query, hash, expires, id)
}

func (r *UserRepository) ClearPasswordResetToken(ctx context.Context, id int64) error {
	const query = `
		UPDATE users
		SET password_reset_token = NULL,
			password_reset_expires = NULL
		WHERE id = $1`
	return r.execOne(ctx, query, id)
}

// UpdatePassword stores a new hash and clears any pending reset token.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			password_changed_at = $2,
			password_reset_token = NULL,
			password_reset_expires = NULL,
			updated_at = $2
		WHERE id = $3 AND active`
	return r.execOne(ctx, query, passwordHash, changedAt, id)
}

// ResetPassword is UpdatePassword conditioned on tokenHash still being the
// user's reset token and unexpired at changedAt. It returns ErrNotFound
// when a concurrent reset already consumed the token.
func (r *UserRepository) ResetPassword(ctx context.Context, id int64, tokenHash, passwordHash string, changedAt time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			password_changed_at = $2,
			password_reset_token = NULL,
			password_reset_expires = NULL,
			updated_at = $2
		WHERE id = $3
			AND active
			AND password_reset_token = $4
			AND password_reset_expires > $2`
	return r.execOne(ctx, query, passwordHash, changedAt, id, tokenHash)
}

// Deactivate hides the account without deleting it.
func (r *UserRepository) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE users SET active = FALSE, updated_at = $1 WHERE id = $2 AND active`
	return r.execOne(ctx, query, time.Now().UTC(), id)
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM users WHERE id = $1`
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (types.User, error) {
	var (
		user         types.User
		resetToken   sql.NullString
		resetExpires sql.NullTime
		changedAt    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Photo,
		&user.Role,
		&user.PasswordHash,
		&changedAt,
		&resetToken,
		&resetExpires,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.PasswordResetToken = resetToken.String
	if changedAt.Valid {
		user.PasswordChangedAt = &changedAt.Time
	}
	if resetExpires.Valid {
		user.PasswordResetExpires = &resetExpires.Time
	}
	return user, nil
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func userField(user *types.User, field string) any {
	switch field {
	case "id":
		return &user.ID
	case "name":
		return &user.Name
	case "email":
		return &user.Email
	case "photo":
		return &user.Photo
	case "role":
		return &user.Role
	case "createdAt":
		return &user.CreatedAt
	case "updatedAt":
		return &user.UpdatedAt
	default:
		return new(any)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
