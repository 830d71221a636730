package httpapi

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"deadline-tracker/internal/service"
)

// NotificationHandler serves the inbox.
type NotificationHandler struct {
	workspaces
}

func NewNotificationHandler(svc *service.WorkspaceService, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{workspaces: workspaces{svc: svc, log: log}}
}

// List returns the inbox newest first with the unread count.
func (h *NotificationHandler) List(c fiber.Ctx) error {
	ws, err := h.current(c)
	if err != nil {
		return err
	}
	return jsonSuccess(c, fiber.Map{
		"items":  ws.Notifications.List(),
		"unread": ws.Notifications.UnreadCount(),
	})
}

func (h *NotificationHandler) MarkRead(c fiber.Ctx) error {
	ws, err := h.current(c)
	if err != nil {
		return err
	}
	n, err := ws.MarkRead(c.Context(), c.Params("id"))
	if err != nil {
		return domainError(c, h.log, err, "failed to mark notification")
	}
	return jsonSuccess(c, fiber.Map{
		"notification": n,
		"unread":       ws.Notifications.UnreadCount(),
	})
}

func (h *NotificationHandler) MarkAllRead(c fiber.Ctx) error {
	ws, err := h.current(c)
	if err != nil {
		return err
	}
	changed, err := ws.MarkAllRead(c.Context())
	if err != nil {
		return domainError(c, h.log, err, "failed to mark notifications")
	}
	return jsonSuccess(c, fiber.Map{"changed": changed, "unread": 0})
}
