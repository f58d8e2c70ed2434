package util

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrNoCaller signals that the request carried no caller identity.
var ErrNoCaller = errors.New("missing bearer identity")

// CallerID extracts the opaque user id from the Authorization header. Token
// verification happens upstream at the identity provider; by the time a
// request reaches this service the bearer value is the opaque id itself.
func CallerID(c *fiber.Ctx) (string, error) {
	auth := c.Get(fiber.HeaderAuthorization)
	if auth == "" {
		return "", ErrNoCaller
	}

	id := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if id == "" || id == auth {
		return "", ErrNoCaller
	}
	return id, nil
}
