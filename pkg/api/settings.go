package api

import (
	"net/http"

	"coolmon/pkg/models"
	"coolmon/pkg/settings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SettingsHandler owns the system-settings routes. A saved interval change
// is forwarded to the scheduler so it applies without a restart.
type SettingsHandler struct {
	settings *settings.Service
	trigger  PollTrigger
}

func NewSettingsHandler(settingsService *settings.Service, trigger PollTrigger) *SettingsHandler {
	return &SettingsHandler{settings: settingsService, trigger: trigger}
}

func (handler *SettingsHandler) Register(g *gin.RouterGroup) {
	g.GET("/settings", handler.get)
	g.PUT("/settings", handler.update)
}

func (handler *SettingsHandler) get(c *gin.Context) {
	current, err := handler.settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, current)
}

func (handler *SettingsHandler) update(c *gin.Context) {
	var incoming models.SystemSettings
	if err := c.ShouldBindJSON(&incoming); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if incoming.SMTPEnabled {
		if err := validate.Var(incoming.SMTPFromEmail, "required,email"); err != nil {
			respondError(c, http.StatusBadRequest, "smtp_from_email must be a valid address when SMTP is enabled")
			return
		}
	}

	saved, err := handler.settings.Save(c.Request.Context(), &incoming)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	if saved.PollingIntervalSeconds > 0 {
		handler.trigger.Reschedule(saved.PollingIntervalSeconds)
	}
	c.JSON(http.StatusOK, saved)
}
