package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/auth"
)

// ActorLocalKey is the key used to store the authenticated actor in Fiber's
// context locals.
const ActorLocalKey = "actor"

// Auth authenticates the request via a bearer token and stores the resulting
// actor in context locals. Requests without a valid token are rejected with
// 401 before any handler runs.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "missing bearer token")
		}

		actor, err := auth.ParseActorToken(secret, token)
		if err != nil {
			return unauthorized(c, "invalid token")
		}

		c.Locals(ActorLocalKey, *actor)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	rid, _ := c.Locals(RequestIDLocalKey).(string)
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"request_id": rid,
		"error": fiber.Map{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
