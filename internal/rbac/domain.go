// Package rbac holds the role-based authorization policy for inventory
// operations. Services call it with the principal taken from the request
// context; HTTP middleware only establishes that a principal exists.
package rbac

import (
	"context"
	"fmt"

	"github.com/vminventory/vminventory/internal/shared"
)

// Authenticated returns the principal on ctx or shared.ErrUnauthorized.
func Authenticated(ctx context.Context) (shared.Principal, error) {
	p, ok := shared.PrincipalFromContext(ctx)
	if !ok {
		return shared.Principal{}, fmt.Errorf("%w: authentication required", shared.ErrUnauthorized)
	}
	return p, nil
}

func forbid(reason string) error {
	return fmt.Errorf("%w: %s", shared.ErrForbidden, reason)
}

func isManager(p shared.Principal) bool {
	return p.Role == shared.RoleSuperAdmin || p.Role == shared.RoleAdmin
}
