package auth

import (
	"errors"
	"fmt"
	"user_service/internal/common"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and verifies secrets with bcrypt. Each hash embeds
// its own random salt and cost.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is outside bcrypt's accepted range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(secret string) (string, error) {
	const op = "auth.Hash"

	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%s: %w", op, common.ErrBadRequest)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// Verify reports whether secret matches hash. A wrong secret is (false, nil);
// a hash bcrypt cannot parse is ErrCorruptCredential.
func (h *PasswordHasher) Verify(secret, hash string) (bool, error) {
	const op = "auth.Verify"

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%s: %w: %v", op, common.ErrCorruptCredential, err)
	}
}
