package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/services"
)

type SettingsHandler struct {
	log      *logger.Logger
	settings services.SettingsService
}

func NewSettingsHandler(log *logger.Logger, settings services.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		log:      log.With("handler", "SettingsHandler"),
		settings: settings,
	}
}

// GET /api/settings
func (h *SettingsHandler) List(c *gin.Context) {
	settings, err := h.settings.List(c.Request.Context())
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"settings": settings})
}

type setSettingRequest struct {
	Value       string  `json:"value" binding:"required"`
	Description *string `json:"description"`
}

// PUT /api/settings/:key
func (h *SettingsHandler) Set(c *gin.Context) {
	key := c.Param("key")
	var req setSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}
	if err := h.settings.Set(c.Request.Context(), key, req.Value, req.Description); err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "ok", "key": key})
}
