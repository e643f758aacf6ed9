package http

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": version,
		})
	}
}

// ReadyHandler checks any configured database, cache and NATS connection. Optional dependencies that are not configured do not
// fail readiness.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		var mu sync.Mutex
		checks := make(map[string]string)
		allOK := true
		set := func(name, status string, ok bool) {
			mu.Lock()
			defer mu.Unlock()
			checks[name] = status
			if !ok {
				allOK = false
			}
		}

		var g errgroup.Group
		ping := func(name string, p Pinger) {
			if p == nil {
				set(name, "not configured", true)
				return
			}
			g.Go(func() error {
				if err := p.Ping(ctx); err != nil {
					set(name, "error: "+err.Error(), false)
				} else {
					set(name, "ok", true)
				}
				return nil
			})
		}
		ping("database", deps.DB)
		ping("cache", deps.Cache)

		switch {
		case deps.NATS == nil:
			set("nats", "not configured", true)
		case deps.NATS.IsConnected():
			set("nats", "ok", true)
		default:
			set("nats", "disconnected", false)
		}

		if deps.Launcher != nil {
			set("temporal", "ok", true)
		} else {
			set("temporal", "not configured", true)
		}
		_ = g.Wait()

		status := "ready"
		code := 200
		if !allOK {
			status = "not ready"
			code = 503
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
