package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"memvault/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	service *services.MemoryService
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service *services.MemoryService) *HealthHandler {
	return &HealthHandler{service: service}
}

// Handle responds with server health and database reachability
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     err.Error(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
