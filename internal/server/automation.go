package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleSyncDrive runs a document-store scan. Folder access is verified up
// front so a misconfigured binding fails loudly instead of silently syncing
// nothing.
func (h *httpHandler) handleSyncDrive(c *gin.Context) {
	if !secretMatches(bearerToken(c.Request), h.syncAPIKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.sync.VerifyFolders(c.Request.Context()); err != nil {
		h.logger.Error("folder verification failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "folder_verification_failed"})
		return
	}

	result, err := h.sync.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("drive sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync_failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type digestResponsePayload struct {
	Sent           bool   `json:"sent"`
	Subject        string `json:"subject"`
	Total          int    `json:"total"`
	NextDayCount   int    `json:"nextDayCount"`
	WeekLaterCount int    `json:"weekLaterCount"`
}

// handleReviewEmail sends the pending-review digest. The shared key may also
// arrive as an api_key query parameter because some schedulers cannot set
// headers.
func (h *httpHandler) handleReviewEmail(c *gin.Context) {
	presented := bearerToken(c.Request)
	if presented == "" {
		presented = c.Query("api_key")
	}
	if !secretMatches(presented, h.syncAPIKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	email, err := h.digest.Send(c.Request.Context())
	if err != nil {
		h.logger.Error("digest send failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "digest_failed"})
		return
	}
	c.JSON(http.StatusOK, digestResponsePayload{
		Sent:           true,
		Subject:        email.Subject,
		Total:          email.Total,
		NextDayCount:   email.NextDayCount,
		WeekLaterCount: email.WeekLaterCount,
	})
}

type cronStepPayload struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

type cronResponsePayload struct {
	Sync   cronStepPayload `json:"sync"`
	Digest cronStepPayload `json:"digest"`
}

// handleCron is the scheduler entry point: one authenticated GET fans out to
// the drive sync and the digest email. Each step reports independently so a
// sync failure never suppresses the digest.
func (h *httpHandler) handleCron(c *gin.Context) {
	if !secretMatches(bearerToken(c.Request), h.cronSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	response := cronResponsePayload{}

	if result, err := h.sync.Run(c.Request.Context()); err != nil {
		h.logger.Error("cron sync step failed", zap.Error(err))
		response.Sync = cronStepPayload{Error: err.Error()}
	} else {
		response.Sync = cronStepPayload{OK: true, Detail: result.Message}
	}

	if email, err := h.digest.Send(c.Request.Context()); err != nil {
		h.logger.Error("cron digest step failed", zap.Error(err))
		response.Digest = cronStepPayload{Error: err.Error()}
	} else {
		response.Digest = cronStepPayload{OK: true, Detail: email.Subject}
	}

	c.JSON(http.StatusOK, response)
}
