package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type ClientHandler struct {
	log     *logger.Logger
	clients repos.ClientRepo
}

func NewClientHandler(log *logger.Logger, clients repos.ClientRepo) *ClientHandler {
	return &ClientHandler{
		log:     log.With("handler", "ClientHandler"),
		clients: clients,
	}
}

// GET /api/clients
func (h *ClientHandler) List(c *gin.Context) {
	clients, err := h.clients.List(c.Request.Context(), nil)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"clients": clients})
}

type createClientRequest struct {
	Name             string  `json:"name" binding:"required"`
	TelegramChatID   *int64  `json:"telegram_chat_id"`
	TodoistProjectID *string `json:"todoist_project_id"`
}

// POST /api/clients
func (h *ClientHandler) Create(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	created, err := h.clients.Create(c.Request.Context(), nil, &types.Client{
		Name:             req.Name,
		TelegramChatID:   req.TelegramChatID,
		TodoistProjectID: req.TodoistProjectID,
	})
	if err != nil {
		RespondFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GET /api/clients/:id
func (h *ClientHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	client, err := h.clients.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, client)
}
