package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/noteduco342/chatsync/internal/httpx"
)

type CSRFMode string

const (
	CSRFOff    CSRFMode = "off"
	CSRFOrigin CSRFMode = "origin"
	CSRFToken  CSRFMode = "token"
)

const (
	CSRFCookie = "cs_csrf"
	CSRFHeader = "X-CS-CSRF"
)

// ParseCSRFMode reads CSRF_MODE. Empty means origin.
func ParseCSRFMode(s string) (CSRFMode, error) {
	switch mode := CSRFMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return CSRFOrigin, nil
	case CSRFOff, CSRFOrigin, CSRFToken:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown CSRF mode %q", s)
	}
}

func safeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}

// CSRFRequired guards state-changing requests that ride on the access cookie.
// Requests carrying a bearer token or no Origin header are not browser
// form posts and pass. In token mode safe requests also hand out the
// double-submit cookie the client echoes in X-CS-CSRF.
func CSRFRequired(mode CSRFMode, allowedOrigins []string) fiber.Handler {
	if mode == "" {
		mode = CSRFOrigin
	}
	if mode == CSRFOff {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		if safeMethod(c.Method()) {
			if mode == CSRFToken && c.Cookies(CSRFCookie) == "" {
				c.Cookie(&fiber.Cookie{
					Name:     CSRFCookie,
					Value:    uuid.NewString(),
					Path:     "/",
					SameSite: fiber.CookieSameSiteStrictMode,
					Secure:   c.Protocol() == "https",
				})
			}
			return c.Next()
		}

		if strings.HasPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ") {
			return c.Next()
		}
		origin := strings.TrimSpace(c.Get(fiber.HeaderOrigin))
		if origin == "" {
			return c.Next()
		}
		if len(allowedOrigins) > 0 && !originAllowed(origin, allowedOrigins) {
			return httpx.Forbidden(c, "forbidden_origin", "Origin not allowed")
		}
		if mode == CSRFOrigin {
			return c.Next()
		}

		cookie, header := c.Cookies(CSRFCookie), c.Get(CSRFHeader)
		switch {
		case cookie == "" || header == "":
			return httpx.Forbidden(c, "csrf_required", "Missing CSRF token")
		case subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1:
			return httpx.Forbidden(c, "csrf_invalid", "Invalid CSRF token")
		}
		return c.Next()
	}
}
