package middleware

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// IPAllowlistMiddleware rejects callers outside the provider's published IP
// ranges with 403. It is installed only in production-like environments;
// local development and tests run without it.
func IPAllowlistMiddleware(allowed []*net.IPNet) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := net.ParseIP(clientIP(c))
		if ip == nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Unrecognized source address"})
		}
		for _, ipNet := range allowed {
			if ipNet.Contains(ip) {
				return c.Next()
			}
		}
		log.Warnf("[Webhook] Rejected delivery from non-allowlisted IP %s", ip)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Source IP not allowed"})
	}
}

func clientIP(c *fiber.Ctx) string {
	// Trust the left-most forwarded address when behind the edge proxy.
	if forwarded := strings.TrimSpace(c.Get("X-Forwarded-For")); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found {
			return strings.TrimSpace(first)
		}
		return forwarded
	}
	return c.IP()
}
