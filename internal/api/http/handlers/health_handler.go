package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName string
	version     string
	postgres    Pinger
	redis       Pinger
	logger      *zap.Logger
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string, postgres, redis Pinger, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{serviceName: serviceName, version: version, postgres: postgres, redis: redis, logger: logger}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports service readiness by checking dependencies.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	postgresOK := h.check(ctx, "postgres", h.postgres)
	redisOK := h.check(ctx, "redis", h.redis)

	status := "ok"
	code := fiber.StatusOK
	if !postgresOK || !redisOK {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			"postgres": statusWord(postgresOK),
			"redis":    statusWord(redisOK),
		},
	})
}

func (h *HealthHandler) check(ctx context.Context, name string, dep Pinger) bool {
	if dep == nil {
		return false
	}
	if err := dep.Ping(ctx); err != nil {
		h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
		return false
	}
	return true
}

func statusWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
