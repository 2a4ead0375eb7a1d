package relay

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// sessionCookie carries the opaque per-browser session identifier. The
// value means nothing to the pipeline, it is only a key into the history
// store.
const sessionCookie = "balrog_session"

const sessionTTL = 24 * time.Hour

// sessionID returns the request's session identifier, minting a fresh one
// and setting the cookie when none is present.
func sessionID(c *fiber.Ctx) string {
	if id := c.Cookies(sessionCookie); id != "" {
		return id
	}

	id := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Expires:  time.Now().Add(sessionTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return id
}
