package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advisorkit/consultant-backend/internal/logger"
	"github.com/advisorkit/consultant-backend/internal/services"
)

type RAGHandler struct {
	log     *logger.Logger
	rag     services.RAGService
	indexer services.IndexingService
}

func NewRAGHandler(log *logger.Logger, rag services.RAGService, indexer services.IndexingService) *RAGHandler {
	return &RAGHandler{
		log:     log.With("handler", "RAGHandler"),
		rag:     rag,
		indexer: indexer,
	}
}

// POST /api/rag/ask
func (h *RAGHandler) Ask(c *gin.Context) {
	var req services.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	resp, err := h.rag.Ask(c.Request.Context(), req)
	if err != nil {
		h.log.Error("ask failed", "error", err.Error())
		RespondFromError(c, err)
		return
	}
	RespondOK(c, resp)
}

type indexRequest struct {
	MeetingIDs []uuid.UUID `json:"meeting_ids"`
	Force      bool        `json:"force"`
}

// POST /api/rag/index
// Indexes the named meetings, or every meeting with a transcript when the
// list is empty.
func (h *RAGHandler) Index(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	ctx := c.Request.Context()
	report := &services.IndexRunReport{}

	if len(req.MeetingIDs) == 0 {
		full, err := h.indexer.IndexAll(ctx, req.Force)
		if err != nil {
			RespondFromError(c, err)
			return
		}
		report = full
	} else {
		for _, id := range req.MeetingIDs {
			n, err := h.indexer.IndexMeeting(ctx, id, req.Force)
			if err != nil {
				report.Failed++
				h.log.Error("indexing meeting failed", "meeting_id", id.String(), "error", err.Error())
				continue
			}
			if n == 0 {
				report.Skipped++
			} else {
				report.Indexed++
				report.Chunks += n
			}
		}
	}

	stats, err := h.indexer.Stats(ctx)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"status":  "ok",
		"message": indexMessage(report),
		"stats":   gin.H{"total_chunks": stats.TotalChunks},
	})
}

func indexMessage(r *services.IndexRunReport) string {
	switch {
	case r.Failed > 0:
		return "indexing finished with failures"
	case r.Indexed == 0:
		return "nothing to index"
	default:
		return "indexing finished"
	}
}

// GET /api/rag/stats
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.indexer.Stats(c.Request.Context())
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"total_chunks":     stats.TotalChunks,
		"indexed_meetings": stats.IndexedMeetings,
	})
}

// DELETE /api/rag/index/:meeting_id
func (h *RAGHandler) DeleteIndex(c *gin.Context) {
	id, err := uuid.Parse(c.Param("meeting_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_meeting_id", err)
		return
	}
	deleted, err := h.indexer.DeleteMeetingIndex(c.Request.Context(), id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted_chunks": deleted})
}

// POST /api/rag/reindex/:meeting_id
func (h *RAGHandler) Reindex(c *gin.Context) {
	id, err := uuid.Parse(c.Param("meeting_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_meeting_id", err)
		return
	}
	n, err := h.indexer.ReindexMeeting(c.Request.Context(), id)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"chunks_created": n})
}

// POST /api/rag/meeting-context/:meeting_id
func (h *RAGHandler) MeetingContext(c *gin.Context) {
	id, err := uuid.Parse(c.Param("meeting_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_meeting_id", err)
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "bad_payload", err)
		return
	}

	answer, err := h.rag.GetMeetingContext(c.Request.Context(), id, req.Question)
	if err != nil {
		RespondFromError(c, err)
		return
	}
	RespondOK(c, gin.H{"answer": answer})
}
