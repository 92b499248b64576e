package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"todoapp/internal/auth"
	"todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
)

const (
	minUserPasswordLen  = 4
	minAdminPasswordLen = 6
	// bcrypt rejects longer inputs
	maxPasswordBytes = 72
)

// AuthService handles signup and login of regular users.
type AuthService interface {
	Signup(ctx context.Context, username, password string) error
	// Login returns a signed user token.
	Login(ctx context.Context, username, password string) (string, error)
}

type authService struct {
	users      repository.CredentialRepository
	jwtService *auth.JWTService
	log        zerolog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(users repository.CredentialRepository, jwtService *auth.JWTService, log zerolog.Logger) AuthService {
	return &authService{
		users:      users,
		jwtService: jwtService,
		log:        log.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Signup(ctx context.Context, username, password string) error {
	if err := createCredential(ctx, s.users, username, password, minUserPasswordLen); err != nil {
		if !errors.Is(err, errors.ErrValidation) {
			s.log.Error().Err(err).Str("username", username).Msg("signup")
		}
		return err
	}
	s.log.Info().Str("username", username).Msg("user signed up")
	return nil
}

func (s *authService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errors.ErrMissingCredentials
	}
	if err := verifyCredential(ctx, s.users, username, password); err != nil {
		s.log.Info().Err(err).Str("username", username).Msg("login rejected")
		return "", err
	}

	token, err := s.jwtService.Issue(username, model.RoleUser)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// createCredential validates and stores a new credential record in repo.
func createCredential(ctx context.Context, repo repository.CredentialRepository, username, password string, minLen int) error {
	if username == "" || password == "" {
		return errors.ErrMissingCredentials
	}
	if err := checkPassword(password, minLen); err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return repo.Create(ctx, &model.User{Username: username, PasswordHash: hash})
}

// verifyCredential reports unknown usernames and wrong passwords alike as
// ErrInvalidCredentials.
func verifyCredential(ctx context.Context, repo repository.CredentialRepository, username, password string) error {
	user, err := repo.FindByUsername(ctx, username)
	if errors.Is(err, errors.ErrUserNotFound) {
		return errors.ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return errors.ErrInvalidCredentials
		}
		return err
	}
	return nil
}

func checkPassword(password string, minLen int) error {
	if len(password) > maxPasswordBytes {
		return errors.Validation("Password must be at most 72 bytes")
	}
	if len([]rune(password)) >= minLen {
		return nil
	}
	if minLen >= minAdminPasswordLen {
		return errors.ErrWeakAdminPassword
	}
	return errors.ErrWeakPassword
}
