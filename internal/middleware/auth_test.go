package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoapp/internal/auth"
	"todoapp/internal/cache"
	"todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
)

func newGateServer(t *testing.T) (*echo.Echo, *auth.JWTService, repository.Store, *auth.TokenStore) {
	t.Helper()
	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Users().Create(context.Background(), &model.User{Username: "alice", PasswordHash: "x"}))
	require.NoError(t, store.Admins().Create(context.Background(), &model.User{Username: "root", PasswordHash: "x"}))

	rdb, _ := setupTestRedis(t)
	tokens := auth.NewTokenStore(cache.New(rdb, ""), time.Hour)
	jwtService := auth.NewJWTService("test-secret", time.Hour)

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		httpErr := errors.MapErrorToHTTP(err)
		_ = c.JSON(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	ok := func(c echo.Context) error {
		return c.String(http.StatusOK, Username(c))
	}
	e.GET("/tasks", ok, UserAuth(GateConfig{JWT: jwtService, Revocation: tokens, Accounts: store.Users(), Log: zerolog.Nop()}))
	e.GET("/admin", ok, AdminAuth(GateConfig{JWT: jwtService, Revocation: tokens, Accounts: store.Admins(), Log: zerolog.Nop()}))
	return e, jwtService, store, tokens
}

func TestAuthGates(t *testing.T) {
	e, jwtService, _, _ := newGateServer(t)

	userToken, err := jwtService.Issue("alice", model.RoleUser)
	require.NoError(t, err)
	adminToken, err := jwtService.Issue("root", model.RoleAdmin)
	require.NoError(t, err)
	expired, err := auth.NewJWTService("test-secret", -time.Hour).Issue("alice", model.RoleUser)
	require.NoError(t, err)
	foreign, err := auth.NewJWTService("other-secret", time.Hour).Issue("alice", model.RoleUser)
	require.NoError(t, err)
	ghost, err := jwtService.Issue("ghost", model.RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"user token on user route", "/tasks", "Bearer " + userToken, http.StatusOK, "alice"},
		{"admin token on admin route", "/admin", "Bearer " + adminToken, http.StatusOK, "root"},
		{"missing header", "/tasks", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "/tasks", "Basic " + userToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"malformed", "/tasks", "Bearer not.a.token", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"expired", "/tasks", "Bearer " + expired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad signature", "/tasks", "Bearer " + foreign, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown user", "/tasks", "Bearer " + ghost, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"admin token on user route", "/tasks", "Bearer " + adminToken, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"user token on admin route", "/admin", "Bearer " + userToken, http.StatusForbidden, "ADMIN_REQUIRED"},
		{"no token on admin route", "/admin", "", http.StatusUnauthorized, "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestUserAuth_RevokedToken(t *testing.T) {
	e, jwtService, _, tokens := newGateServer(t)
	token, err := jwtService.Issue("alice", model.RoleUser)
	require.NoError(t, err)

	require.NoError(t, tokens.RevokeBefore(context.Background(), model.RoleUser, "alice", time.Now().Add(time.Minute)))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserAuth_DeletedUser(t *testing.T) {
	e, jwtService, store, _ := newGateServer(t)
	token, err := jwtService.Issue("alice", model.RoleUser)
	require.NoError(t, err)
	require.NoError(t, store.DeleteUser(context.Background(), "alice"))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
