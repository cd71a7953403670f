package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskvault/core/internal/infrastructure/logger"
	"github.com/taskvault/core/internal/infrastructure/token"
)

const (
	loginPath     = "/login"
	registerPath  = "/register"
	dashboardPath = "/dashboard"
)

// publicPrefixes lists paths the access gate lets through without a
// token: the auth pages, the auth API, health/metrics probes and static
// assets.
var publicPrefixes = []string{
	loginPath,
	registerPath,
	"/api/v1/auth",
	"/health",
	"/ready",
	"/metrics",
	"/static",
	"/favicon",
}

func isPublicPath(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAuthPage(path string) bool {
	return path == loginPath || path == registerPath
}

// accessGate classifies every request before its handler runs.
// Unauthenticated requests for protected pages are redirected to the
// login page; authenticated users hitting the auth pages are sent to
// the dashboard. API routes pass through and answer 401 themselves:
// a JSON client gets a status code, not a login redirect. The gate is
// UX-oriented and runs in addition to per-handler verification.
func accessGate(tokens *token.Service, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if isPublicPath(path) {
				if isAuthPage(path) {
					if _, ok := tokens.FromRequest(c.Request()); ok {
						return c.Redirect(http.StatusFound, dashboardPath)
					}
				}
				return next(c)
			}

			if strings.HasPrefix(path, "/api/") {
				return next(c)
			}

			if _, ok := tokens.FromRequest(c.Request()); !ok {
				log.Debugw("Access gate redirect", "path", path)
				return c.Redirect(http.StatusFound, loginPath)
			}

			return next(c)
		}
	}
}

// authMiddleware verifies the cookie token and stores the claims in the
// request context. Handlers behind it still re-verify the cookie on
// their own; the two checks are deliberately independent.
func authMiddleware(tokens *token.Service, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := tokens.FromRequest(c.Request())
			if !ok {
				log.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"path": c.Request().URL.Path,
				})
				return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
			}

			c.Set("user", claims.UserID)
			c.Set("user_email", claims.Email)
			c.Set("user_name", claims.Name)

			return next(c)
		}
	}
}
