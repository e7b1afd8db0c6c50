package api

import (
	"errors"
	"net/http"
	"strconv"

	"coolmon/pkg/database"

	"github.com/gin-gonic/gin"
)

// defaultActor tags lifecycle actions when the caller does not identify
// itself.
const defaultActor = "operator"

// AlertHandler owns the alert ledger routes.
type AlertHandler struct {
	alerts *database.AlertRepository
}

func NewAlertHandler(alerts *database.AlertRepository) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

func (handler *AlertHandler) Register(g *gin.RouterGroup) {
	r := g.Group("/alerts")
	r.GET("", handler.list)
	r.GET("/count", handler.count)
	r.GET("/:id", handler.get)
	r.PUT("/:id/acknowledge", handler.acknowledge)
	r.PUT("/:id/resolve", handler.resolve)
	r.POST("/:id/comment", handler.comment)
	r.DELETE("/heat-exchanger/:id/clear-all", handler.clearAll)
}

type alertAction struct {
	Actor    string `json:"actor"`
	Comments string `json:"comments"`
}

type alertComment struct {
	Actor    string `json:"actor"`
	Comments string `json:"comments" binding:"required"`
}

func (action *alertAction) actor() string {
	if action.Actor == "" {
		return defaultActor
	}
	return action.Actor
}

func parseFilter(c *gin.Context) database.AlertFilter {
	var filter database.AlertFilter

	if raw := c.Query("heat_exchanger_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filter.HeatExchangerID = &id
		}
	}
	if raw := c.Query("acknowledged"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			filter.Acknowledged = &value
		}
	}
	if raw := c.Query("resolved"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			filter.Resolved = &value
		}
	}
	filter.Severity = c.Query("severity")
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	return filter
}

func (handler *AlertHandler) list(c *gin.Context) {
	alerts, err := handler.alerts.List(c.Request.Context(), parseFilter(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (handler *AlertHandler) count(c *gin.Context) {
	count, err := handler.alerts.Count(c.Request.Context(), parseFilter(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (handler *AlertHandler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	alert, err := handler.alerts.Get(c.Request.Context(), id)
	if err != nil {
		handler.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (handler *AlertHandler) acknowledge(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var action alertAction
	if err := c.ShouldBindJSON(&action); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := handler.alerts.Acknowledge(c.Request.Context(), id, action.actor(), action.Comments); err != nil {
		handler.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert acknowledged", "alert_id": id})
}

func (handler *AlertHandler) resolve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var action alertAction
	if err := c.ShouldBindJSON(&action); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := handler.alerts.Resolve(c.Request.Context(), id, action.actor(), action.Comments); err != nil {
		handler.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert resolved", "alert_id": id})
}

func (handler *AlertHandler) comment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body alertComment
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	actor := body.Actor
	if actor == "" {
		actor = defaultActor
	}

	if err := handler.alerts.Comment(c.Request.Context(), id, actor, body.Comments); err != nil {
		handler.respondLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment added", "alert_id": id})
}

// clearAll resolves every open alert for one exchanger and reports how
// many it closed.
func (handler *AlertHandler) clearAll(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var action alertAction
	if err := c.ShouldBindJSON(&action); err != nil && err.Error() != "EOF" {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	count, err := handler.alerts.BulkResolve(c.Request.Context(), id, action.actor())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":           "All alerts cleared",
		"heat_exchanger_id": id,
		"resolved_count":    count,
	})
}

func (handler *AlertHandler) respondLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrAlertNotFound):
		respondError(c, http.StatusNotFound, "alert not found")
	case errors.Is(err, database.ErrAlreadyAcknowledged):
		respondError(c, http.StatusBadRequest, "alert already acknowledged")
	case errors.Is(err, database.ErrAlreadyResolved):
		respondError(c, http.StatusBadRequest, "alert already resolved")
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}
