package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/repos"
	"github.com/advisorkit/consultant-backend/internal/types"
)

type HypothesisHandler struct {
	log        *logger.Logger
	hypotheses repos.HypothesisRepo
}

func NewHypothesisHandler(log *logger.Logger, hypotheses repos.HypothesisRepo) *HypothesisHandler {
	return &HypothesisHandler{
		log:        log.With("handler", "HypothesisHandler"),
		hypotheses: hypotheses,
	}
}

// GET /api/hypotheses?quarter=&limit=
func (h *HypothesisHandler) List(c *gin.Context) {
	if quarter := c.Query("quarter"); quarter != "" {
		hs, err := h.hypotheses.ListByQuarter(c.Request.Context(), nil, quarter)
		if err != nil {
			RespondFromError(c, err)
			return
		}
		RespondOK(c, gin.H{"hypotheses": hs})
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	hs, err := h.hypotheses.List(c.Request.Context(), nil, limit)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"hypotheses": hs})
}

type createHypothesisRequest struct {
	ClientID    *uuid.UUID `json:"client_id"`
	Title       string     `json:"title" binding:"required"`
	Description *string    `json:"description"`
	Quarter     string     `json:"quarter" binding:"required"`
}

// POST /api/hypotheses
func (h *HypothesisHandler) Create(c *gin.Context) {
	var req createHypothesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	created, err := h.hypotheses.Create(c.Request.Context(), nil, &types.Hypothesis{
		ClientID:    req.ClientID,
		Title:       req.Title,
		Description: req.Description,
		Status:      types.HypothesisStatusNew,
		Quarter:     req.Quarter,
	})
	if err != nil {
		RespondFromError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GET /api/hypotheses/:id
func (h *HypothesisHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	hypothesis, err := h.hypotheses.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, hypothesis)
}

// PATCH /api/hypotheses/:id/status
func (h *HypothesisHandler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_id", err)
		return
	}
	var req struct {
		Status string  `json:"status" binding:"required"`
		Result *string `json:"result"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}
	if !types.ValidHypothesisStatus(req.Status) {
		RespondError(c, http.StatusBadRequest, "bad_status", fmt.Errorf("unknown status %q", req.Status))
		return
	}

	updated, err := h.hypotheses.UpdateStatus(c.Request.Context(), nil, id, req.Status, req.Result)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, updated)
}

// GET /api/hypotheses/stats/:quarter
func (h *HypothesisHandler) QuarterStats(c *gin.Context) {
	quarter := c.Param("quarter")
	stats, err := repos.Stats(c.Request.Context(), h.hypotheses, quarter)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, stats)
}
