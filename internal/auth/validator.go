// Package auth turns an Authorization header into an authenticated Identity.
// Signed credentials are tried first; anything that fails signature
// verification for a reason other than expiry falls back to the static key
// table.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"cinotify/internal/types"
)

const bearerScheme = "Bearer "

// TokenValidator authenticates requests against the shared signing secret
// and the static key table.
type TokenValidator struct {
	secret []byte
	keys   *KeyTable
	clock  types.Clock
	logger *slog.Logger
}

// NewTokenValidator builds a validator. Either credential source may be empty.
func NewTokenValidator(secret string, keys *KeyTable, clock types.Clock, logger *slog.Logger) *TokenValidator {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if keys == nil {
		keys = &KeyTable{}
	}
	return &TokenValidator{
		secret: []byte(secret),
		keys:   keys,
		clock:  clock,
		logger: logger,
	}
}

// ParseBearer extracts the token from "Bearer <token>". The scheme is matched
// case-insensitively.
func ParseBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", types.NewAppError(types.ErrCodeAuthMalformedCredential, "Missing authorization header", nil)
	}
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return "", types.NewAppError(types.ErrCodeAuthMalformedCredential, "Authorization header must use the Bearer scheme", nil)
	}
	token := strings.TrimSpace(header[len(bearerScheme):])
	if token == "" {
		return "", types.NewAppError(types.ErrCodeAuthMalformedCredential, "Bearer token is empty", nil)
	}
	return token, nil
}

// Validate resolves an Authorization header to an Identity.
//
// Returns auth_malformed_credential for a bad header, auth_token_expired for a
// correctly signed but expired credential, and auth_unauthorized when neither
// path accepts the token.
func (v *TokenValidator) Validate(ctx context.Context, header string) (*types.Identity, error) {
	token, err := ParseBearer(header)
	if err != nil {
		v.logger.WarnContext(ctx, "authentication failed", "reason", "malformed_credential")
		return nil, err
	}

	if len(v.secret) > 0 {
		id, err := v.verifySigned(token)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			v.logger.WarnContext(ctx, "authentication failed", "reason", "token_expired")
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "Token has expired", err)
		}
	}

	if org, ok := v.keys.Lookup(token); ok {
		return StaticIdentity(org), nil
	}

	v.logger.WarnContext(ctx, "authentication failed", "reason", "unauthorized")
	return nil, types.NewAppError(types.ErrCodeAuthUnauthorized, "Invalid or missing credentials", nil)
}

func (v *TokenValidator) verifySigned(token string) (*types.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Organization == "" {
		return nil, errors.New("credential carries no organization")
	}

	id := &types.Identity{
		OrganizationID: claims.Organization,
		UserID:         claims.subject(),
		Permissions:    dedupePermissions(claims.Permissions),
		Kind:           types.CredentialSigned,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time.UTC()
		id.ExpiresAt = &exp
	}
	return id, nil
}
