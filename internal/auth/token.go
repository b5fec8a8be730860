package auth

import (
	"errors"
	"fmt"
	"time"
	"user_service/internal/common"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = time.Hour

// Claims is the verified identity carried by a session token.
type Claims struct {
	SubjectID uuid.UUID
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	UserID uuid.UUID `json:"userId"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies stateless HS256 session tokens. It is
// immutable after construction and safe for concurrent use.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenService(key []byte, ttl time.Duration) (*TokenService, error) {
	const op = "auth.NewTokenService"

	if len(key) == 0 {
		return nil, fmt.Errorf("%s: empty signing key", op)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenService{
		key: append([]byte(nil), key...),
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Issue signs a token for the subject valid from now until now+TTL.
func (s *TokenService) Issue(subjectID uuid.UUID, subject string) (string, Claims, error) {
	now := s.now().Truncate(time.Second)

	return s.sign(subjectID, subject, now, now.Add(s.ttl))
}

// Verify checks the algorithm, signature and expiry of token and only then
// returns its claims.
func (s *TokenService) Verify(token string) (Claims, error) {
	const op = "auth.Verify"

	if token == "" {
		return Claims{}, fmt.Errorf("%s: %w", op, common.ErrInvalidToken)
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%s: %w", op, common.ErrTokenExpired)
		}
		return Claims{}, fmt.Errorf("%s: %w: %v", op, common.ErrInvalidToken, err)
	}

	if !parsed.Valid || claims.UserID == uuid.Nil || claims.Email == "" || claims.IssuedAt == nil {
		return Claims{}, fmt.Errorf("%s: %w: missing claims", op, common.ErrInvalidToken)
	}

	return Claims{
		SubjectID: claims.UserID,
		Subject:   claims.Email,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Renew re-issues a token for the same subject with a fresh TTL window.
// The new expiry is always strictly after claims.ExpiresAt.
func (s *TokenService) Renew(claims Claims) (string, Claims, error) {
	const op = "auth.Renew"

	if claims.SubjectID == uuid.Nil || claims.Subject == "" {
		return "", Claims{}, fmt.Errorf("%s: %w", op, common.ErrInvalidToken)
	}

	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)
	if !expiresAt.After(claims.ExpiresAt) {
		expiresAt = claims.ExpiresAt.Truncate(time.Second).Add(time.Second)
	}

	return s.sign(claims.SubjectID, claims.Subject, now, expiresAt)
}

func (s *TokenService) sign(subjectID uuid.UUID, subject string, issuedAt, expiresAt time.Time) (string, Claims, error) {
	const op = "auth.sign"

	tokenID, err := uuid.NewV4()
	if err != nil {
		return "", Claims{}, fmt.Errorf("%s: %w", op, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID: subjectID,
		Email:  subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID.String(),
			Subject:   subjectID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, Claims{
		SubjectID: subjectID,
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
