package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// cacheRule maps a path matcher to a Cache-Control value. The first match wins.
type cacheRule struct {
	match   func(path string) bool
	control string
}

func exact(p string) func(string) bool { return func(path string) bool { return path == p } }
func prefix(p string) func(string) bool { return func(path string) bool { return strings.HasPrefix(path, p) } }
func suffix(s string) func(string) bool { return func(path string) bool { return strings.HasSuffix(path, s) } }
func oneOf(ps ...string) func(string) bool {
	return func(path string) bool {
		for _, p := range ps {
			if path == p {
				return true
			}
		}
		return false
	}
}

var cacheRules = []cacheRule{
	{oneOf("/v1/health", "/v1/ready"), "public, max-age=10"},
	{oneOf("/metrics", "/v1/artifact"), "no-cache"},
	{exact("/v1/distance"), "public, max-age=86400"},
	{suffix("/artifact"), "public, max-age=86400, immutable"},
	{suffix("/runs"), "no-cache"},
	{prefix("/v1/trajectories/"), "public, max-age=3600"},
	{oneOf("/docs"), "public, max-age=3600"},
	{prefix("/docs/"), "public, max-age=3600"},
}

// CachingMiddleware sets Cache-Control on successful GET responses that did
// not set their own. The shared artifact is rewritten by every computation;
// per-trajectory copies and distances never change.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return err
		}
		if len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}
		path := c.Path()
		for _, r := range cacheRules {
			if r.match(path) {
				c.Set(fiber.HeaderCacheControl, r.control)
				break
			}
		}
		return err
	}
}
