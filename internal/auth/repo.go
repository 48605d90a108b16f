package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateEmail is returned by stores when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = "23505"

// User is a stored account row.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore is the data access the auth service depends on.
type UserStore interface {
	// FindUserByEmail returns nil, nil when no user matches.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// FindUserByID returns nil, nil when no user matches.
	FindUserByID(ctx context.Context, id string) (*User, error)
	// InsertUser returns ErrDuplicateEmail when the email is taken.
	InsertUser(ctx context.Context, u User) (User, error)
	ListRoleGrants(ctx context.Context, userID string) ([]RoleGrant, error)
}

// Repository persists users and role grants in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, password_hash, created_at`

// FindUserByEmail looks a user up by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindUserByID looks a user up by primary key.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// InsertUser writes a new user in a single statement so the unique index on
// email decides races between concurrent registrations.
func (r *Repository) InsertUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, u.ID, u.Name, u.Email, u.PasswordHash)
	if err := row.Scan(&u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return u, nil
}

// ListRoleGrants returns the user's grants ordered by role id. Each grant's role
// is read as JSON so the same decoding handles object and array shapes.
func (r *Repository) ListRoleGrants(ctx context.Context, userID string) ([]RoleGrant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ur.role_id, to_jsonb(ro)
		FROM user_roles ur
		JOIN roles ro ON ro.id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY ur.role_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.Roles); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GrantRole assigns a role by name; granting an already held role is a no-op.
func (r *Repository) GrantRole(ctx context.Context, userID, roleName string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT (user_id, role_id) DO NOTHING
	`, userID, roleName)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, roleName).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errors.New("unknown role " + roleName)
		}
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
