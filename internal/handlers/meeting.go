package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type MeetingHandler struct {
	log       *logger.Logger
	meetings  repos.MeetingRepo
	summaries repos.SummaryRepo
}

func NewMeetingHandler(log *logger.Logger, meetings repos.MeetingRepo, summaries repos.SummaryRepo) *MeetingHandler {
	return &MeetingHandler{
		log:       log.With("handler", "MeetingHandler"),
		meetings:  meetings,
		summaries: summaries,
	}
}

// GET /api/meetings?client_id=&limit=
func (h *MeetingHandler) List(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	var (
		meetings []*types.Meeting
		err      error
	)
	if raw := c.Query("client_id"); raw != "" {
		clientID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			RespondError(c, http.StatusBadRequest, "bad_client_id", parseErr)
			return
		}
		meetings, err = h.meetings.ListByClient(c.Request.Context(), nil, clientID, limit)
	} else {
		meetings, err = h.meetings.ListRecent(c.Request.Context(), nil, limit)
	}
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"meetings": meetings})
}

type createMeetingRequest struct {
	Title       string     `json:"title" binding:"required"`
	Date        *time.Time `json:"date"`
	Transcript  *string    `json:"transcript"`
	ClientID    *uuid.UUID `json:"client_id"`
	MeetingType *string    `json:"meeting_type"`
}

// POST /api/meetings
func (h *MeetingHandler) Create(c *gin.Context) {
	var req createMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}
	if req.MeetingType != nil && !types.ValidMeetingType(*req.MeetingType) {
		RespondError(c, http.StatusBadRequest, "bad_meeting_type", fmt.Errorf("unknown meeting type %q", *req.MeetingType))
		return
	}

	meeting := &types.Meeting{
		Title:       req.Title,
		Date:        req.Date,
		Transcript:  req.Transcript,
		ClientID:    req.ClientID,
		MeetingType: req.MeetingType,
	}
	created, err := h.meetings.Create(c.Request.Context(), nil, meeting)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GET /api/meetings/:id
func (h *MeetingHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	meeting, err := h.meetings.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, meeting)
}

// PATCH /api/meetings/:id/type
func (h *MeetingHandler) UpdateType(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	var req struct {
		MeetingType string `json:"meeting_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}
	if !types.ValidMeetingType(req.MeetingType) {
		RespondError(c, http.StatusBadRequest, "bad_meeting_type", fmt.Errorf("unknown meeting type %q", req.MeetingType))
		return
	}

	if err := h.meetings.UpdateType(c.Request.Context(), nil, id, req.MeetingType); err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"status": "ok"})
}

// GET /api/meetings/:id/summaries
func (h *MeetingHandler) ListSummaries(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	summaries, err := h.summaries.GetByMeeting(c.Request.Context(), nil, id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"summaries": summaries})
}
