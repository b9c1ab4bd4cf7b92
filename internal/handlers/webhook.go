package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/services"
)

type WebhookHandler struct {
	log         *logger.Logger
	transcripts services.TranscriptService
}

func NewWebhookHandler(log *logger.Logger, transcripts services.TranscriptService) *WebhookHandler {
	return &WebhookHandler{
		log:         log.With("handler", "WebhookHandler"),
		transcripts: transcripts,
	}
}

type firefliesWebhookRequest struct {
	MeetingID         string `json:"meetingId"`
	EventType         string `json:"eventType"`
	ClientReferenceID string `json:"clientReferenceId,omitempty"`
}

// POST /api/webhook/fireflies
func (h *WebhookHandler) Fireflies(c *gin.Context) {
	var req firefliesWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	res, err := h.transcripts.ProcessWebhook(c.Request.Context(), req.EventType, req.MeetingID)
	if err != nil {
		h.log.Error("webhook processing failed",
			"fireflies_id", req.MeetingID,
			"event_type", req.EventType,
			"error", err.Error(),
		)
		RespondFromError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"status":  res.Status,
		"message": webhookMessage(res),
	})
}

func webhookMessage(res *services.WebhookResult) string {
	switch res.Status {
	case "ok":
		return "transcript ingested and indexed"
	case "duplicate":
		return "transcript already ingested"
	case "ignored":
		return "event ignored"
	case "empty":
		return "transcript has no content"
	case "saved_unindexed":
		return "transcript saved, indexing deferred"
	default:
		return res.Status
	}
}
