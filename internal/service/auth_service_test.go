package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todoapp/internal/auth"
	"todoapp/internal/errors"
	"todoapp/internal/model"
)

// MockCredentialRepository is a mock implementation of CredentialRepository.
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockCredentialRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockCredentialRepository) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	args := m.Called(ctx, username, passwordHash)
	return args.Error(0)
}

func (m *MockCredentialRepository) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func TestAuthService_Signup(t *testing.T) {
	tests := []struct {
		name          string
		username      string
		password      string
		setupMock     func(*MockCredentialRepository)
		expectedError error
	}{
		{
			name:     "successful signup",
			username: "alice",
			password: "pass",
			setupMock: func(m *MockCredentialRepository) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
					return u.Username == "alice" && auth.CheckPassword(u.PasswordHash, "pass") == nil
				})).Return(nil)
			},
		},
		{
			name:     "username taken",
			username: "alice",
			password: "password",
			setupMock: func(m *MockCredentialRepository) {
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(errors.ErrUsernameTaken)
			},
			expectedError: errors.ErrUsernameTaken,
		},
		{
			name:          "password too short",
			username:      "alice",
			password:      "abc",
			setupMock:     func(m *MockCredentialRepository) {},
			expectedError: errors.ErrWeakPassword,
		},
		{
			name:          "missing username",
			username:      "",
			password:      "password",
			setupMock:     func(m *MockCredentialRepository) {},
			expectedError: errors.ErrMissingCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockCredentialRepository)
			tt.setupMock(mockRepo)

			service := NewAuthService(mockRepo, auth.NewJWTService("test-secret", 0), zerolog.Nop())
			err := service.Signup(context.Background(), tt.username, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)

	tests := []struct {
		name          string
		username      string
		password      string
		setupMock     func(*MockCredentialRepository)
		expectedError error
	}{
		{
			name:     "successful login",
			username: "alice",
			password: "secret",
			setupMock: func(m *MockCredentialRepository) {
				m.On("FindByUsername", mock.Anything, "alice").Return(&model.User{Username: "alice", PasswordHash: hash}, nil)
			},
		},
		{
			name:     "wrong password",
			username: "alice",
			password: "wrong",
			setupMock: func(m *MockCredentialRepository) {
				m.On("FindByUsername", mock.Anything, "alice").Return(&model.User{Username: "alice", PasswordHash: hash}, nil)
			},
			expectedError: errors.ErrInvalidCredentials,
		},
		{
			name:     "unknown user",
			username: "bob",
			password: "secret",
			setupMock: func(m *MockCredentialRepository) {
				m.On("FindByUsername", mock.Anything, "bob").Return(nil, errors.ErrUserNotFound)
			},
			expectedError: errors.ErrInvalidCredentials,
		},
		{
			name:          "missing password",
			username:      "alice",
			setupMock:     func(m *MockCredentialRepository) {},
			expectedError: errors.ErrMissingCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockCredentialRepository)
			tt.setupMock(mockRepo)

			jwtService := auth.NewJWTService("test-secret", 0)
			service := NewAuthService(mockRepo, jwtService, zerolog.Nop())
			token, err := service.Login(context.Background(), tt.username, tt.password)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Empty(t, token)
			} else {
				require.NoError(t, err)
				claims, err := jwtService.Verify(token)
				require.NoError(t, err)
				assert.Equal(t, tt.username, claims.Username)
				assert.Equal(t, model.RoleUser, claims.Role)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}
