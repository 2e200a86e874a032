package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vminventory/vminventory/internal/rbac"
	"github.com/vminventory/vminventory/internal/shared"
	"github.com/vminventory/vminventory/internal/users"
)

// Directory resolves accounts for authentication.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	users     Directory
	sessions  *shared.SessionManager
	hasher    shared.PasswordHasher
	validator *shared.Validator
	logger    *slog.Logger
}

// NewService constructs a new Service.
func NewService(users Directory, sessions *shared.SessionManager, hasher shared.PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		validator: shared.NewValidator(),
		logger:    logger,
	}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, shared.ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return users.User{}, err
	}
	return user, nil
}

// Login authenticates the credentials and opens a session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	req.Email = shared.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return LoginResponse{}, err
	}
	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			s.logger.Warn("login rejected", slog.String("email", req.Email))
		}
		return LoginResponse{}, err
	}
	sess, err := s.sessions.Create(ctx, user.Principal())
	if err != nil {
		return LoginResponse{}, shared.Persistence("create session", err)
	}
	return LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: user}, nil
}

// Logout destroys the session on ctx, if any.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.sessions.Destroy(ctx, shared.SessionFromContext(ctx)); err != nil {
		return shared.Persistence("destroy session", err)
	}
	return nil
}

// Me returns the user behind the current session.
func (s *Service) Me(ctx context.Context) (users.User, error) {
	p, err := rbac.Authenticated(ctx)
	if err != nil {
		return users.User{}, err
	}
	return s.users.GetUser(ctx, p.UserID)
}
