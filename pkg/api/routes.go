// Package api exposes the administrative HTTP surface: exchanger
// inventory, the alert ledger, system settings, the live websocket feed,
// and a health probe.
package api

import (
	"net/http"
	"time"

	"coolmon/pkg/database"
	"coolmon/pkg/settings"
	"coolmon/pkg/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps collects everything the router wires together.
type Deps struct {
	DB       *gorm.DB
	Alerts   *database.AlertRepository
	Settings *settings.Service
	Hub      *ws.Hub
	Trigger  PollTrigger
	Tester   ConnectionTester
}

// NewRouter assembles the gin engine with all route groups registered.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	apiGroup := router.Group("/api")
	NewExchangerHandler(deps.DB, deps.Trigger, deps.Tester).Register(apiGroup)
	NewAlertHandler(deps.Alerts).Register(apiGroup)
	NewSettingsHandler(deps.Settings, deps.Trigger).Register(apiGroup)

	apiGroup.GET("/health", healthHandler(deps.Hub))

	router.GET("/ws", func(c *gin.Context) {
		ws.Serve(deps.Hub, c.Writer, c.Request)
	})

	return router
}

func healthHandler(hub *ws.Hub) gin.HandlerFunc {
	started := time.Now()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(started).Seconds()),
			"ws_clients":     hub.ClientCount(),
		})
	}
}
