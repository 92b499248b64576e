package middleware

import (
	"context"
	stderrors "errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"todoapp/internal/auth"
	"todoapp/internal/errors"
	"todoapp/internal/model"
	"todoapp/internal/repository"
)

// claimsKey is the echo context key holding the verified *auth.Claims.
const claimsKey = "claims"

// GateConfig configures a bearer token gate.
type GateConfig struct {
	JWT        *auth.JWTService
	Revocation auth.RevocationStore
	// Accounts, when set, must still hold the token's username.
	Accounts repository.CredentialRepository
	Log      zerolog.Logger
}

// UserAuth admits user tokens only. Admin tokens are rejected with 401
// because they do not identify a task collection owner.
func UserAuth(cfg GateConfig) echo.MiddlewareFunc {
	return gate(cfg, model.RoleUser, errors.ErrUnauthorized)
}

// AdminAuth admits admin tokens only. A valid user token is answered with
// 403 instead of 401.
func AdminAuth(cfg GateConfig) echo.MiddlewareFunc {
	return gate(cfg, model.RoleAdmin, errors.ErrAdminRequired)
}

func gate(cfg GateConfig, role string, wrongRole error) echo.MiddlewareFunc {
	log := cfg.Log.With().Str("component", "auth_gate").Str("role", role).Logger()

	return echojwt.WithConfig(echojwt.Config{
		ContextKey: claimsKey,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := cfg.JWT.Verify(token)
			if err != nil {
				return nil, err
			}
			if claims.Role != role {
				return nil, auth.ErrTokenWrongRole
			}
			ctx := c.Request().Context()
			if auth.IsRevoked(ctx, cfg.Revocation, claims.Role, claims.Username, claims.Issued()) {
				return nil, auth.ErrTokenRevoked
			}
			if err := accountExists(ctx, cfg.Accounts, claims.Username); err != nil {
				return nil, err
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var extraction *echojwt.TokenExtractionError
			if stderrors.As(err, &extraction) {
				err = auth.ErrTokenMissing
			}

			if errors.Is(err, errors.ErrStorage) {
				log.Error().Err(err).Str("path", c.Path()).Msg("token check failed")
				return err
			}

			log.Info().
				Str("reason", auth.Reason(err)).
				Str("path", c.Path()).
				Str("ip", c.RealIP()).
				Msg("request rejected")

			if errors.Is(err, auth.ErrTokenWrongRole) {
				return wrongRole
			}
			return errors.ErrUnauthorized
		},
	})
}

func accountExists(ctx context.Context, accounts repository.CredentialRepository, username string) error {
	if accounts == nil {
		return nil
	}
	_, err := accounts.FindByUsername(ctx, username)
	if errors.Is(err, errors.ErrUserNotFound) {
		return auth.ErrTokenUnknownUser
	}
	return err
}

// Claims returns the verified claims stored by the gate.
func Claims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(claimsKey).(*auth.Claims)
	return claims
}

// Username returns the authenticated username, or "" outside a gate.
func Username(c echo.Context) string {
	if claims := Claims(c); claims != nil {
		return claims.Username
	}
	return ""
}
