package access

import (
	"context"
	"fmt"
	"net/http"
	"user_service/internal/auth"
	"user_service/internal/common"
	"user_service/internal/models"

	"github.com/gofrs/uuid"
)

// AccountFinder loads the current state of an account.
type AccountFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

// RoleSet is a validated, non-empty set of roles.
type RoleSet struct {
	roles map[models.Role]struct{}
}

// NewRoleSet fails on an empty set or on any unknown role.
func NewRoleSet(roles ...models.Role) (RoleSet, error) {
	if len(roles) == 0 {
		return RoleSet{}, fmt.Errorf("access: empty role set")
	}

	set := RoleSet{roles: make(map[models.Role]struct{}, len(roles))}
	for _, r := range roles {
		if !r.Valid() {
			return RoleSet{}, fmt.Errorf("access: unknown role %q", r)
		}
		set.roles[r] = struct{}{}
	}

	return set, nil
}

// MustRoleSet is NewRoleSet for route registration; it panics on error.
func MustRoleSet(roles ...models.Role) RoleSet {
	set, err := NewRoleSet(roles...)
	if err != nil {
		panic(err)
	}
	return set
}

func (s RoleSet) Contains(r models.Role) bool {
	_, ok := s.roles[r]
	return ok
}

// Authorize reads the caller's current role from the repository and denies
// the request unless it is in roles. It needs Authenticate to have run
// first and fails closed otherwise.
func Authorize(accounts AccountFinder, roles RoleSet) Stage {
	return Stage{
		Name: "authorize",
		Run: func(ctx context.Context, _ *http.Request, _ http.Header) (context.Context, error) {
			const op = "access.Authorize"

			identity, ok := auth.IdentityFrom(ctx)
			if !ok {
				return ctx, deny("no_identity", fmt.Errorf("%s: %w", op, common.ErrUnauthorized))
			}

			user, err := accounts.FindByID(ctx, identity.SubjectID)
			if err != nil {
				return ctx, deny("lookup_failed", fmt.Errorf("%s: %w: %v", op, common.ErrUnauthorized, err))
			}

			if !roles.Contains(user.Role) {
				return ctx, deny("role_forbidden", fmt.Errorf("%s: %w", op, common.ErrUnauthorized))
			}

			return ctx, nil
		},
	}
}
