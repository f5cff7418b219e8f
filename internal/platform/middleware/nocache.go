package middleware

import (
	"github.com/labstack/echo/v4"
)

// NoCache returns Echo middleware that forbids any intermediary or client
// caching of the response. The unread-message poll endpoint depends on this:
// two pollers hitting the same URL seconds apart must both reach the store,
// never a cached body.
func NoCache() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
			return next(c)
		}
	}
}
