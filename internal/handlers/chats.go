package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/services"
)

type ChatHandler struct {
	log  *logger.Logger
	sync services.TelegramSyncService
}

func NewChatHandler(log *logger.Logger, sync services.TelegramSyncService) *ChatHandler {
	return &ChatHandler{
		log:  log.With("handler", "ChatHandler"),
		sync: sync,
	}
}

// GET /api/chats
func (h *ChatHandler) List(c *gin.Context) {
	chats, err := h.sync.ListChats(c.Request.Context())
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"chats": chats})
}

type registerChatRequest struct {
	ID         int64      `json:"id" binding:"required"`
	Title      string     `json:"title" binding:"required"`
	ClientName *string    `json:"client_name"`
	ClientID   *uuid.UUID `json:"client_id"`
}

// POST /api/chats
// Registers (or re-activates) a room for monitoring. The watcher picks the
// room up on its next reconciler pass.
func (h *ChatHandler) Register(c *gin.Context) {
	var req registerChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	room, err := h.sync.RegisterChat(c.Request.Context(), req.ID, req.Title, req.ClientName, req.ClientID)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}
