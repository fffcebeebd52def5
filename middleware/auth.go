// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// WalletHeader carries the principal, set by the gateway after wallet sign-in.
	WalletHeader = "X-Wallet-Address"
	// WalletLocal is the fiber.Ctx locals key holding the principal.
	WalletLocal = "wallet"
	// RolesHeader is the comma-separated role list the gateway attaches.
	RolesHeader = "X-User-Roles"
	// RolesLocal is the fiber.Ctx locals key holding the parsed roles.
	RolesLocal = "user_roles"

	// RoleAdmin grants the operator endpoints.
	RoleAdmin = "admin"

	maxWalletLen = 64
)

// WalletFromHeader stores the gateway-supplied wallet in locals, or "" when absent.
// Routes that may be called anonymously use it directly.
func WalletFromHeader() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(WalletLocal, strings.TrimSpace(c.Get(WalletHeader)))
		return c.Next()
	}
}

// WalletContextMiddleware requires the wallet header on secured routes.
func WalletContextMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		wallet := strings.TrimSpace(c.Get(WalletHeader))
		if wallet == "" || len(wallet) > maxWalletLen {
			logger.Warn("[USER_CTX] wallet header required but missing on secured route", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing " + WalletHeader + ", request must come through gateway with wallet context",
			})
		}
		c.Locals(WalletLocal, wallet)
		return c.Next()
	}
}

// Wallet returns the principal stored by either middleware.
func Wallet(c *fiber.Ctx) string {
	w, _ := c.Locals(WalletLocal).(string)
	return w
}

// Roles parses the gateway role header.
func Roles(c *fiber.Ctx) []string {
	var roles []string
	for _, r := range strings.Split(c.Get(RolesHeader), ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

// RequireRole rejects requests whose gateway roles do not include role.
func RequireRole(role string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles := Roles(c)
		c.Locals(RolesLocal, roles)
		for _, r := range roles {
			if strings.EqualFold(r, role) {
				return c.Next()
			}
		}
		logger.Warn("[USER_CTX] role required",
			zap.String("role", role),
			zap.Strings("roles", roles),
			zap.String("wallet", strings.TrimSpace(c.Get(WalletHeader))),
			zap.String("path", c.Path()),
		)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "forbidden: " + role + " role required",
		})
	}
}
