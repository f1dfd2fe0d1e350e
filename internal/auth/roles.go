package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/intervention-service/internal/domain"
	apperrors "github.com/fieldops/intervention-service/pkg/util/errorutil"
)

// RequireRole ensures the caller has one of the allowed roles. Managers and the system
// account pass every check.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed)+2)
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}
	allowedSet[domain.RoleManager] = struct{}{}
	allowedSet[domain.RoleSystem] = struct{}{}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
