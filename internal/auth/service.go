package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"schooladmin/internal/apperr"
	"schooladmin/internal/metrics"
)

// errInvalidCredentials is returned for every login failure so callers cannot
// tell an unknown email from a wrong password.
var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)

// PublicUser is a user record safe to return to callers.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the password hash.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

// AuthenticatedUser is a user with aggregated roles and, after login, a token.
type AuthenticatedUser struct {
	User        PublicUser `json:"user"`
	Roles       []string   `json:"roles"`
	CurrentRole string     `json:"currentRole"`
	Token       string     `json:"token,omitempty"`
}

// Options tunes the auth service.
type Options struct {
	BcryptCost   int
	FallbackRole string
}

// Service verifies credentials, aggregates roles and issues tokens.
type Service struct {
	store        UserStore
	tokens       *Issuer
	cost         int
	fallbackRole string
	dummyHash    string
	logger       *slog.Logger
}

// NewService creates a service backed by a user store.
func NewService(store UserStore, tokens *Issuer, opts Options, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BcryptCost < MinBcryptCost {
		opts.BcryptCost = MinBcryptCost
	}
	if opts.FallbackRole == "" {
		opts.FallbackRole = "student"
	}
	// Compared against on unknown emails so both failure paths cost one bcrypt check.
	dummy, err := HashPassword("not-a-real-password", opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Service{
		store:        store,
		tokens:       tokens,
		cost:         opts.BcryptCost,
		fallbackRole: opts.FallbackRole,
		dummyHash:    dummy,
		logger:       logger.With("component", "auth"),
	}, nil
}

// ValidateUser checks credentials and returns the user with roles and a token.
func (s *Service) ValidateUser(ctx context.Context, email, password string) (AuthenticatedUser, error) {
	email = normalizeEmail(email)
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		s.logger.ErrorContext(ctx, "user lookup failed", "error", err)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return AuthenticatedUser{}, errInvalidCredentials
	}
	if user == nil {
		CheckPassword(s.dummyHash, password)
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return AuthenticatedUser{}, errInvalidCredentials
	}
	if !CheckPassword(user.PasswordHash, password) {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return AuthenticatedUser{}, errInvalidCredentials
	}

	out, err := s.withRoles(ctx, *user)
	if err != nil {
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return AuthenticatedUser{}, err
	}

	token, _, err := s.tokens.Issue(user.ID, user.Email, out.Roles)
	if err != nil {
		s.logger.ErrorContext(ctx, "token issue failed", "user_id", user.ID, "error", err)
		metrics.LoginAttempts.WithLabelValues("error").Inc()
		return AuthenticatedUser{}, fmt.Errorf("%w: token issue failed", apperr.ErrUnauthorized)
	}
	out.Token = token

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "current_role", out.CurrentRole)
	return out, nil
}

// RegisterUser creates an account. The insert is a single statement; a unique
// violation on email is reported as a conflict.
func (s *Service) RegisterUser(ctx context.Context, name, email, password string) (PublicUser, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return PublicUser{}, fmt.Errorf("%w: name, email and password are required", apperr.ErrInvalidArgument)
	}

	if len(password) > MaxPasswordBytes {
		return PublicUser{}, fmt.Errorf("%w: password must be at most %d bytes", apperr.ErrInvalidArgument, MaxPasswordBytes)
	}

	hash, err := HashPassword(password, s.cost)
	if err != nil {
		s.logger.ErrorContext(ctx, "password hash failed", "error", err)
		metrics.Registrations.WithLabelValues("error").Inc()
		return PublicUser{}, fmt.Errorf("%w: registration failed", apperr.ErrUnauthorized)
	}

	user, err := s.store.InsertUser(ctx, User{Name: name, Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			metrics.Registrations.WithLabelValues("conflict").Inc()
			return PublicUser{}, fmt.Errorf("%w: user already exists", apperr.ErrConflict)
		}
		s.logger.ErrorContext(ctx, "user insert failed", "error", err)
		metrics.Registrations.WithLabelValues("error").Inc()
		return PublicUser{}, fmt.Errorf("%w: registration failed", apperr.ErrUnauthorized)
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user.Public(), nil
}

// GetUserByID returns the user with aggregated roles and no token.
func (s *Service) GetUserByID(ctx context.Context, userID string) (AuthenticatedUser, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "user lookup failed", "user_id", userID, "error", err)
		return AuthenticatedUser{}, fmt.Errorf("%w: user lookup failed", apperr.ErrUnauthorized)
	}
	if user == nil {
		return AuthenticatedUser{}, fmt.Errorf("%w: user not found", apperr.ErrUnauthorized)
	}
	return s.withRoles(ctx, *user)
}

func (s *Service) withRoles(ctx context.Context, user User) (AuthenticatedUser, error) {
	grants, err := s.store.ListRoleGrants(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "role lookup failed", "user_id", user.ID, "error", err)
		return AuthenticatedUser{}, fmt.Errorf("%w: failed to fetch roles", apperr.ErrUnauthorized)
	}
	roles := FlattenRoles(grants)
	current := s.fallbackRole
	if len(roles) > 0 {
		current = roles[0]
	}
	return AuthenticatedUser{User: user.Public(), Roles: roles, CurrentRole: current}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
