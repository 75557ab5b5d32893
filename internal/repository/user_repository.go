package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"notes-api/internal/apperr"
	"notes-api/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// UsernameExists and EmailExists ignore the user with id excludeID; pass 0 to check everyone.
	UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, is_admin, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.IsAdmin, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

// Create inserts a user. The first user ever stored becomes an admin; the
// check runs inside the insert so two concurrent first registrations cannot
// both get the flag.
func (r *userRepository) Create(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	ts := now()
	query := `INSERT INTO users (username, email, password_hash, is_admin, created_at, updated_at)
              SELECT ?, ?, ?, NOT EXISTS (SELECT 1 FROM users), ?, ?`
	result, err := r.db.ExecContext(ctx, query, username, models.NormalizeEmail(email), passwordHash, ts, ts)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, duplicateUser(err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *userRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "email = ?", models.NormalizeEmail(email))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, "username = ?", strings.TrimSpace(username))
}

func (r *userRepository) exists(ctx context.Context, column, value string, excludeID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE ` + column + ` = ? AND id <> ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, value, excludeID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check %s existence: %w", column, err)
	}
	return count > 0, nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.exists(ctx, "username", strings.TrimSpace(username), excludeID)
}

func (r *userRepository) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, "email", models.NormalizeEmail(email), excludeID)
}

// UpdateProfile writes only the non-nil fields of update.
func (r *userRepository) UpdateProfile(ctx context.Context, id int64, update models.ProfileUpdate) (*models.User, error) {
	sets := []string{"updated_at = ?"}
	args := []any{now()}

	if update.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, strings.TrimSpace(*update.Username))
	}
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, models.NormalizeEmail(*update.Email))
	}
	if update.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *update.PasswordHash)
	}
	args = append(args, id)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, duplicateUser(err)
		}
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperr.NotFound("User not found")
	}

	return r.GetByID(ctx, id)
}

// Delete removes the user together with their notes and tags.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM note_tags WHERE note_id IN (SELECT id FROM notes WHERE user_id = ?)`, id); err != nil {
			return fmt.Errorf("failed to delete user tags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete user notes: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return apperr.NotFound("User not found")
		}
		return nil
	})
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func duplicateUser(err error) error {
	if strings.Contains(violatedKey(err), "username") {
		return apperr.Conflict("Username already taken")
	}
	return apperr.Conflict("User already exists")
}
