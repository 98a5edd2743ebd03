package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicq/backend/internal/domain/models"
	"github.com/clinicq/backend/pkg/constants"
)

const userColumns = "id, username, email, password, is_active, is_superuser, date_joined"

// UserRepository handles database operations for login accounts
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row Scannable) (*models.User, error) {
	var u models.User
	var joined nullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &joined); err != nil {
		return nil, err
	}
	u.DateJoined = joined.Time
	return &u, nil
}

// FindByUsername returns the user or nil when none exists
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE username = ? LIMIT 1", userColumns, constants.TableUser)
	u, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %q: %w", username, err)
	}
	return u, nil
}

// FindByID returns the user or nil when none exists
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1", userColumns, constants.TableUser)
	u, err := scanUser(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return u, nil
}

// UsernameTaken reports whether an active account already uses username
func (r *UserRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE username = ? AND is_active = ?)", constants.TableUser)
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, username, true).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a user and returns its ID
func (r *UserRepository) Create(ctx context.Context, u *models.User) (int64, error) {
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (username, email, password, is_active, is_superuser, date_joined) VALUES (?, ?, ?, ?, ?, ?)",
		constants.TableUser)

	res, err := conn(ctx, r.db).ExecContext(ctx, query, u.Username, u.Email, u.PasswordHash, u.IsActive, u.IsSuperuser, u.DateJoined)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	u.ID = id
	return id, nil
}

// UpdateCredentials sets the password hash, email and superuser flags of an existing user
func (r *UserRepository) UpdateCredentials(ctx context.Context, u *models.User) error {
	query := fmt.Sprintf("UPDATE %s SET email = ?, password = ?, is_active = ?, is_superuser = ? WHERE id = ?", constants.TableUser)
	_, err := conn(ctx, r.db).ExecContext(ctx, query, u.Email, u.PasswordHash, u.IsActive, u.IsSuperuser, u.ID)
	return err
}

// Count returns the number of accounts
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := conn(ctx, r.db).QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", constants.TableUser)).Scan(&n)
	return n, err
}
