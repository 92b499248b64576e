package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"todoapp/internal/auth"
	"todoapp/internal/cache"
	"todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
)

// AdminService covers admin accounts and the cross-user operations of the
// admin surface.
type AdminService interface {
	// Signup creates an admin account when adminKey matches the configured
	// signup key. An empty configured key disables admin signup.
	Signup(ctx context.Context, username, password, adminKey string) error
	// Login returns a signed admin token.
	Login(ctx context.Context, username, password string) (string, error)
	ListUsers(ctx context.Context) ([]model.UserSummary, error)
	Dashboard(ctx context.Context) (*model.Dashboard, error)
	UserTasks(ctx context.Context, username string) ([]model.Task, error)
	// ResetPassword replaces the user's password and revokes their
	// outstanding tokens.
	ResetPassword(ctx context.Context, username, newPassword string) error
	// DeleteUser removes the account with its task collection and revokes
	// its outstanding tokens.
	DeleteUser(ctx context.Context, username string) error
}

type adminService struct {
	store      repository.Store
	jwtService *auth.JWTService
	revocation auth.RevocationStore
	cache      *cache.Client
	locks      *KeyedMutex
	signupKey  string
	log        zerolog.Logger
	now        func() time.Time
}

// AdminDeps groups the collaborators of the admin service.
type AdminDeps struct {
	Store      repository.Store
	JWTService *auth.JWTService
	Revocation auth.RevocationStore
	Cache      *cache.Client
	Locks      *KeyedMutex
	SignupKey  string
}

// NewAdminService creates a new admin service.
func NewAdminService(deps AdminDeps, log zerolog.Logger) AdminService {
	return &adminService{
		store:      deps.Store,
		jwtService: deps.JWTService,
		revocation: deps.Revocation,
		cache:      deps.Cache,
		locks:      deps.Locks,
		signupKey:  deps.SignupKey,
		log:        log.With().Str("component", "admin_service").Logger(),
		now:        time.Now,
	}
}

func (s *adminService) Signup(ctx context.Context, username, password, adminKey string) error {
	if s.signupKey == "" || subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.signupKey)) != 1 {
		s.log.Warn().Str("username", username).Msg("admin signup with invalid key")
		return errors.ErrInvalidAdminKey
	}
	if err := createCredential(ctx, s.store.Admins(), username, password, minAdminPasswordLen); err != nil {
		if !errors.Is(err, errors.ErrValidation) {
			s.log.Error().Err(err).Str("username", username).Msg("admin signup")
		}
		return err
	}
	s.log.Info().Str("username", username).Msg("admin signed up")
	return nil
}

func (s *adminService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", errors.ErrMissingCredentials
	}
	if err := verifyCredential(ctx, s.store.Admins(), username, password); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("admin login rejected")
		return "", err
	}

	token, err := s.jwtService.Issue(username, model.RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *adminService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	summaries, _, err := s.summarize(ctx)
	return summaries, err
}

func (s *adminService) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	summaries, stats, err := s.summarize(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Dashboard{Stats: stats, Users: summaries}, nil
}

func (s *adminService) summarize(ctx context.Context) ([]model.UserSummary, model.DashboardStats, error) {
	var stats model.DashboardStats

	users, err := s.store.Users().List(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list users")
		return nil, stats, err
	}

	summaries := make([]model.UserSummary, 0, len(users))
	for _, u := range users {
		tasks, err := s.store.Tasks().Load(ctx, u.Username)
		if err != nil {
			s.log.Error().Err(err).Str("username", u.Username).Msg("load tasks")
			return nil, stats, err
		}
		summaries = append(summaries, model.UserSummary{Username: u.Username, TaskCount: len(tasks)})

		stats.TotalTasks += len(tasks)
		for _, t := range tasks {
			if t.Completed {
				stats.CompletedTasks++
			}
		}
	}
	stats.TotalUsers = len(users)
	stats.ActiveTasks = stats.TotalTasks - stats.CompletedTasks
	return summaries, stats, nil
}

func (s *adminService) UserTasks(ctx context.Context, username string) ([]model.Task, error) {
	if _, err := s.store.Users().FindByUsername(ctx, username); err != nil {
		return nil, err
	}
	return s.store.Tasks().Load(ctx, username)
}

func (s *adminService) ResetPassword(ctx context.Context, username, newPassword string) error {
	if username == "" || newPassword == "" {
		return errors.Validation("Username and new password required")
	}
	if err := checkPassword(newPassword, minUserPasswordLen); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Users().UpdatePasswordHash(ctx, username, hash); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Error().Err(err).Str("username", username).Msg("reset password")
		}
		return err
	}

	s.revoke(ctx, username)
	s.log.Info().Str("username", username).Msg("password reset by admin")
	return nil
}

func (s *adminService) DeleteUser(ctx context.Context, username string) error {
	unlock := s.locks.Lock(username)
	defer unlock()

	if err := s.store.DeleteUser(ctx, username); err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Error().Err(err).Str("username", username).Msg("delete user")
		}
		return err
	}

	invalidateTaskList(ctx, s.cache, username)
	s.revoke(ctx, username)
	s.log.Info().Str("username", username).Msg("user deleted by admin")
	return nil
}

// revoke is best effort: without Redis the user gate's account lookup still
// rejects tokens of deleted users.
func (s *adminService) revoke(ctx context.Context, username string) {
	if s.revocation == nil {
		return
	}
	if err := s.revocation.RevokeBefore(ctx, model.RoleUser, username, s.now()); err != nil {
		s.log.Warn().Err(err).Str("username", username).Msg("revoke tokens")
	}
}
