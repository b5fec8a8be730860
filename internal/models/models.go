package models

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

// Role is an access tag on an account. Membership checks are exact-match.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// User is the persisted account record. PasswordHash never leaves the
// service layer; use View for anything sent to a client.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Role         Role
	Phone        string
	Address      string
	Birth        string
	PhotoURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserView is the redacted public form of User.
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Birth     string    `json:"birth,omitempty"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) View() UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Phone:     u.Phone,
		Address:   u.Address,
		Birth:     u.Birth,
		PhotoURL:  u.PhotoURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUser is the payload for account creation.
type NewUser struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=4,bcrypt_max"`
	Role     string `json:"role" validate:"required,oneof=ADMIN USER"`
	Phone    string `json:"phone" validate:"required"`
	Address  string `json:"address" validate:"required"`
	Birth    string `json:"birth" validate:"required"`
	PhotoURL string `json:"photoUrl" validate:"required"`
}

// UserPatch is a partial account update. Nil fields are left unchanged.
type UserPatch struct {
	Email    *string `json:"email" validate:"omitnil,email"`
	Password *string `json:"password" validate:"omitnil,min=4,bcrypt_max"`
	Role     *string `json:"role" validate:"omitnil,oneof=ADMIN USER"`
	Phone    *string `json:"phone" validate:"omitnil,min=1"`
	Address  *string `json:"address" validate:"omitnil,min=1"`
	Birth    *string `json:"birth" validate:"omitnil,min=1"`
	PhotoURL *string `json:"photoUrl" validate:"omitnil,min=1"`
}
