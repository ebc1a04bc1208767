package middleware

import "github.com/gofiber/fiber/v2"

const robotsTxt = "User-agent: *\nDisallow: /\n"

// RobotsMiddleware answers /robots.txt, keeping crawlers off the service.
func RobotsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/robots.txt" {
			c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
			c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return c.SendString(robotsTxt)
		}
		return c.Next()
	}
}

// NoStore keeps responses out of caches and search indexes. Used on routes
// whose URL or body carries a credential.
func NoStore(c *fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Set("X-Robots-Tag", "noindex, nofollow")
	return c.Next()
}
