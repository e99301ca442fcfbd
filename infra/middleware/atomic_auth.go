package middleware

import (
	"fmt"
	"strings"

	"atomic_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the role claim required by AdminAuth.
const AdminRole = "admin"

// AdminAuth accepts HS256 bearer tokens signed with secret whose "role" claim
// is AdminRole. An empty secret disables the check.
func AdminAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperr.Unauthorized("missing bearer token")
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return apperr.InvalidToken("invalid token").WithError(err)
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return apperr.InvalidToken("invalid claims")
		}
		if role, _ := claims["role"].(string); role != AdminRole {
			return apperr.Unauthorized("admin role required")
		}
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			c.Locals("admin", sub)
		}
		return c.Next()
	}
}
