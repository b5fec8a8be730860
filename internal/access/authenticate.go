package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"user_service/internal/auth"
	"user_service/internal/common"
	"user_service/internal/metrics"
)

const (
	// TokenHeader carries the session token on requests.
	TokenHeader = "auth"
	// RenewedTokenHeader carries the rolled-forward token on responses.
	RenewedTokenHeader = "token"
)

// TokenVerifier is the part of auth.TokenService the pipeline needs.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
	Renew(claims auth.Claims) (string, auth.Claims, error)
}

// Authenticate verifies the request token, attaches the identity to the
// context and sets a renewed token on the response.
func Authenticate(tokens TokenVerifier) Stage {
	return Stage{
		Name: "authenticate",
		Run: func(ctx context.Context, req *http.Request, resp http.Header) (context.Context, error) {
			const op = "access.Authenticate"

			raw := tokenFromRequest(req)
			if raw == "" {
				return ctx, deny("missing_token", fmt.Errorf("%s: %w", op, common.ErrUnauthorized))
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, common.ErrTokenExpired) {
					reason = "expired_token"
				}
				return ctx, deny(reason, fmt.Errorf("%s: %w", op, err))
			}

			renewed, _, err := tokens.Renew(claims)
			if err != nil {
				return ctx, deny("renew_failed", fmt.Errorf("%s: %w", op, err))
			}

			resp.Set(RenewedTokenHeader, renewed)
			metrics.RecordRenewal()

			return auth.WithIdentity(ctx, claims), nil
		},
	}
}

// tokenFromRequest reads the auth header, falling back to a bearer
// Authorization header.
func tokenFromRequest(req *http.Request) string {
	if token := strings.TrimSpace(req.Header.Get(TokenHeader)); token != "" {
		return token
	}

	parts := strings.SplitN(req.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
