package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"user_service/internal/common"
	"user_service/internal/models"
	"user_service/internal/storage"
)

// UserService manages accounts. Access control happens before it is called.
type UserService struct {
	storage storage.Storage
	hasher  Hasher
	tokens  TokenIssuer
	log     *slog.Logger
}

func NewUserService(st storage.Storage, hasher Hasher, tokens TokenIssuer, lgr *slog.Logger) *UserService {
	return &UserService{
		storage: st,
		hasher:  hasher,
		tokens:  tokens,
		log:     lgr,
	}
}

func (s *UserService) List(ctx context.Context) ([]models.UserView, error) {
	const op = "service.ListUsers"

	users, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.View())
	}

	return views, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (models.UserView, error) {
	const op = "service.GetUserByEmail"

	user, err := s.storage.FindByIdentifier(ctx, email)
	if err != nil {
		return models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}

	return user.View(), nil
}

// Create validates and stores a new account and returns a session token
// for it.
func (s *UserService) Create(ctx context.Context, in models.NewUser) (models.UserView, string, error) {
	const op = "service.CreateUser"

	if err := validateStruct(in); err != nil {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.Save(ctx, models.User{
		Email:        in.Email,
		PasswordHash: passwordHash,
		Role:         models.Role(in.Role),
		Phone:        in.Phone,
		Address:      in.Address,
		Birth:        in.Birth,
		PhotoURL:     in.PhotoURL,
	})
	if err != nil {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, err)
	}

	token, _, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user created", slog.String("user_id", user.ID.String()), slog.String("role", string(user.Role)))

	return user.View(), token, nil
}

// Edit applies the non-nil fields of patch to the account with email.
func (s *UserService) Edit(ctx context.Context, email string, patch models.UserPatch) error {
	const op = "service.EditUser"

	user, err := s.storage.FindByIdentifier(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := validateStruct(patch); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if patch.Password != nil {
		passwordHash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		user.PasswordHash = passwordHash
	}
	if patch.Role != nil {
		user.Role = models.Role(*patch.Role)
	}
	applyString(&user.Email, patch.Email)
	applyString(&user.Phone, patch.Phone)
	applyString(&user.Address, patch.Address)
	applyString(&user.Birth, patch.Birth)
	applyString(&user.PhotoURL, patch.PhotoURL)

	if _, err := s.storage.Save(ctx, user); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user edited", slog.String("user_id", user.ID.String()))

	return nil
}

func (s *UserService) Delete(ctx context.Context, email string) error {
	const op = "service.DeleteUser"

	user, err := s.storage.FindByIdentifier(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user deleted", slog.String("user_id", user.ID.String()))

	return nil
}

// EnsureAdmin creates an ADMIN account with the given credentials unless an
// account with that email already exists. It reports whether one was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	const op = "service.EnsureAdmin"

	_, err := s.storage.FindByIdentifier(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword("password", password); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.Save(ctx, models.User{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Warn("seed admin account created", slog.String("user_id", user.ID.String()), slog.String("email", email))

	return true, nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
