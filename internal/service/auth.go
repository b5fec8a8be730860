package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"user_service/internal/common"
	"user_service/internal/metrics"
	"user_service/internal/models"
	"user_service/internal/storage"

	"github.com/gofrs/uuid"
)

// AuthService handles login and password changes.
type AuthService struct {
	storage storage.Storage
	hasher  Hasher
	tokens  TokenIssuer
	log     *slog.Logger

	decoyOnce sync.Once
	decoyHash string
}

func NewAuthService(st storage.Storage, hasher Hasher, tokens TokenIssuer, lgr *slog.Logger) *AuthService {
	return &AuthService{
		storage: st,
		hasher:  hasher,
		tokens:  tokens,
		log:     lgr,
	}
}

// Login verifies the credentials and returns a session token with the
// redacted account. Unknown email and wrong password both yield
// ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, models.UserView, error) {
	const op = "service.Login"

	if email == "" || password == "" {
		metrics.RecordLogin(metrics.LoginBadRequest)
		return "", models.UserView{}, fmt.Errorf("%s: %w", op, common.ErrBadRequest)
	}

	user, err := s.storage.FindByIdentifier(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.burnDecoy(password)
			metrics.RecordLogin(metrics.LoginRejected)
			return "", models.UserView{}, fmt.Errorf("%s: %w", op, common.ErrUnauthorized)
		}
		metrics.RecordLogin(metrics.LoginError)
		return "", models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		metrics.RecordLogin(metrics.LoginError)
		return "", models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		metrics.RecordLogin(metrics.LoginRejected)
		return "", models.UserView{}, fmt.Errorf("%s: %w", op, common.ErrUnauthorized)
	}

	token, _, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		metrics.RecordLogin(metrics.LoginError)
		return "", models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordLogin(metrics.LoginSuccess)

	return token, user.View(), nil
}

// ChangePassword replaces the password of userID, which must come from a
// verified identity.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.ChangePassword"

	if oldPassword == "" {
		return fmt.Errorf("%s: %w", op, common.ErrBadRequest)
	}

	user, err := s.storage.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, common.ErrUnauthorized)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, common.ErrUnauthorized)
	}

	if err := validatePassword("newPassword", newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user.PasswordHash = hash

	if _, err := s.storage.Save(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("password changed", slog.String("user_id", user.ID.String()))

	return nil
}

// burnDecoy spends one hash comparison so an unknown email costs about as
// much as a wrong password.
func (s *AuthService) burnDecoy(password string) {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password")
		if err != nil {
			s.log.Warn("failed to prepare decoy hash", slog.Any("error", err))
			return
		}
		s.decoyHash = hash
	})

	if s.decoyHash != "" {
		_, _ = s.hasher.Verify(password, s.decoyHash)
	}
}
