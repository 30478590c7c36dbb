package server

import (
	"strconv"
	"strings"

	"pulse/internal/models"
	"pulse/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// parseFeedScope maps ?scope= to a hub scope: "all", "forum:<id>" or
// "post:<id>".
func parseFeedScope(raw string) (string, bool) {
	if raw == "" || raw == notifications.ScopeAll {
		return notifications.ScopeAll, true
	}
	kind, idRaw, ok := strings.Cut(raw, ":")
	if !ok {
		return "", false
	}
	id, err := strconv.ParseUint(idRaw, 10, 64)
	if err != nil || id == 0 {
		return "", false
	}
	switch kind {
	case "forum":
		return notifications.ForumScope(uint(id)), true
	case "post":
		return notifications.PostScope(uint(id)), true
	}
	return "", false
}

// FeedWebSocketHandler streams vote_updated events for one scope.
// @Summary Live vote events
// @Tags feed
// @Param scope query string false "all | forum:<id> | post:<id>"
// @Router /ws/feed [get]
func (s *Server) FeedWebSocketHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		scope, _ := conn.Locals("feedScope").(string)
		viewerID, _ := conn.Locals("voterID").(string)

		client, err := s.feedHub.Register(viewerID, scope, conn)
		if err != nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})

	return func(c *fiber.Ctx) error {
		if s.feedHub == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "live events unavailable",
			})
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		scope, ok := parseFeedScope(c.Query("scope"))
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid scope"))
		}
		c.Locals("feedScope", scope)
		return upgrade(c)
	}
}
