package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ridantG/trapy-ride-together-sub000/internal/services"
)

// HandleWebSocket upgrades the connection and attaches the client to the hub
func HandleWebSocket(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetUint("userId")
		userType := c.GetString("userType")

		services.HandleWebSocket(hub, c.Writer, c.Request, userId, userType)
	}
}

// HealthCheck reports service liveness and the realtime connection count
func HealthCheck(hub *services.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":           "ok",
			"websocketClients": hub.GetConnectedClients(),
		})
	}
}
