package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/services"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type SummaryHandler struct {
	log        *logger.Logger
	summaries  repos.SummaryRepo
	meetings   repos.MeetingRepo
	summarizer services.SummarizerService
}

func NewSummaryHandler(
	log *logger.Logger,
	summaries repos.SummaryRepo,
	meetings repos.MeetingRepo,
	summarizer services.SummarizerService,
) *SummaryHandler {
	return &SummaryHandler{
		log:        log.With("handler", "SummaryHandler"),
		summaries:  summaries,
		meetings:   meetings,
		summarizer: summarizer,
	}
}

type createSummaryRequest struct {
	MeetingID   uuid.UUID      `json:"meeting_id" binding:"required"`
	MeetingType string         `json:"meeting_type" binding:"required"`
	ContentText string         `json:"content_text" binding:"required"`
	ContentJSON datatypes.JSON `json:"content_json"`
}

// POST /api/summaries
func (h *SummaryHandler) Create(c *gin.Context) {
	var req createSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}
	if !types.ValidMeetingType(req.MeetingType) {
		RespondError(c, http.StatusBadRequest, "bad_meeting_type", fmt.Errorf("unknown meeting type %q", req.MeetingType))
		return
	}

	// referenced meeting must exist
	if _, err := h.meetings.GetByID(c.Request.Context(), nil, req.MeetingID); err != nil {
		RespondFromError(c, err)
		return
	}

	created, err := h.summaries.Create(c.Request.Context(), nil, &types.Summary{
		MeetingID:   req.MeetingID,
		MeetingType: req.MeetingType,
		ContentText: req.ContentText,
		ContentJSON: req.ContentJSON,
	})
	if err != nil {
		RespondFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type generateSummaryRequest struct {
	MeetingID   uuid.UUID `json:"meeting_id" binding:"required"`
	MeetingType string    `json:"meeting_type" binding:"required"`
}

// POST /api/summaries/generate
func (h *SummaryHandler) Generate(c *gin.Context) {
	var req generateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	summary, err := h.summarizer.Summarize(c.Request.Context(), req.MeetingID, req.MeetingType)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}
