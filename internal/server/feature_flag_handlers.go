package server

import (
	"pulse/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetFeatureFlags handles GET /api/feature-flags and reports the flags as
// evaluated for the caller.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	voterID, _ := middleware.VoterID(c)
	return c.JSON(fiber.Map{
		"flags": s.featureFlags.Snapshot(voterID),
	})
}
