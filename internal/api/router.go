package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"facility-notify/internal/config"
)

func NewRouter(cfg config.Config, logger *logrus.Logger, h *Handler, wsHandler *WSHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Notifications
		api.GET("/notifications/user/:user_id", h.GetNotificationsByUserID)
		api.GET("/notifications/user/:user_id/unread-count", h.GetUnreadCount)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)
		api.POST("/notifications/user/:user_id/read-all", h.MarkAllNotificationsRead)

		// Accounts
		api.POST("/users", h.CreateUser)

		// Mail relay
		api.POST("/send-task-email", h.SendTaskEmail)

		// Dashboard stream
		api.GET("/ws", wsHandler.Serve)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
