package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/notion"
	"github.com/clearfield-labs/noteloop/internal/review"
)

type pendingResponsePayload struct {
	Notes          []review.PendingNote `json:"notes"`
	ReviewDate     string               `json:"reviewDate"`
	NextDayCount   int                  `json:"nextDayCount"`
	WeekLaterCount int                  `json:"weekLaterCount"`
}

func (h *httpHandler) handleReviewPending(c *gin.Context) {
	result, err := h.review.Pending(c.Request.Context())
	if err != nil {
		h.logger.Error("pending review lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "review_lookup_failed"})
		return
	}

	notes := result.Notes
	if notes == nil {
		notes = []review.PendingNote{}
	}
	c.JSON(http.StatusOK, pendingResponsePayload{
		Notes:          notes,
		ReviewDate:     result.ReviewDate.Format("2006-01-02"),
		NextDayCount:   result.NextDayCount,
		WeekLaterCount: result.WeekLaterCount,
	})
}

type reviewSubmitPayload struct {
	Reviews []review.Submission `json:"reviews"`
}

func (h *httpHandler) handleReviewSubmit(c *gin.Context) {
	var request reviewSubmitPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Reviews) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	result := h.review.Submit(c.Request.Context(), request.Reviews)
	c.JSON(http.StatusOK, result)
}

type notesResponsePayload struct {
	Notes []notion.NoteItem `json:"notes"`
	Count int               `json:"count"`
}

func (h *httpHandler) handleListNotes(c *gin.Context) {
	notes, err := h.records.ListNotes(c.Request.Context())
	if err != nil {
		h.logger.Error("notes listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notes_lookup_failed"})
		return
	}
	if notes == nil {
		notes = []notion.NoteItem{}
	}
	c.JSON(http.StatusOK, notesResponsePayload{Notes: notes, Count: len(notes)})
}
