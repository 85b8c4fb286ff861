package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RequireScope ensures the principal holds one of the allowed scopes. Admin
// tokens satisfy every scope.
func RequireScope(allowed ...Scope) fiber.Handler {
	allowedSet := make(map[Scope]struct{}, len(allowed))
	for _, scope := range allowed {
		allowedSet[scope] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if principal.Scope == ScopeAdmin {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Scope]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient scope")
		}
		return c.Next()
	}
}
