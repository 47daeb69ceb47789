package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/llm"
	"github.com/clearfield-labs/noteloop/internal/note"
)

const signatureHeader = "X-Signature"

type ingestContextPayload struct {
	DefaultDateISO string   `json:"default_date_iso"`
	KnownPeople    []string `json:"known_people"`
}

type ingestContentPayload struct {
	Text          string `json:"text"`
	TranscriptRaw string `json:"transcript_raw"`
}

type ingestRequestPayload struct {
	Source         string               `json:"source"`
	Content        ingestContentPayload `json:"content"`
	MeetingContext ingestContextPayload `json:"meeting_context"`
}

type recordWrittenPayload struct {
	OK     bool   `json:"ok"`
	PageID string `json:"pageId"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
}

// handleIngest accepts one raw source signed with the shared ingest secret.
// The signature covers the raw body and is checked before anything is parsed
// or any external call is made.
func (h *httpHandler) handleIngest(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if !h.validSignature(body, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		return
	}

	var request ingestRequestPayload
	if err := json.Unmarshal(body, &request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	source, err := note.ParseSource(request.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_source"})
		return
	}
	if strings.TrimSpace(request.Content.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_content"})
		return
	}

	summary, err := h.summarizer.SummarizeSource(c.Request.Context(), llm.SummarizeInput{
		Text:           request.Content.Text,
		TranscriptRaw:  request.Content.TranscriptRaw,
		DefaultDateISO: request.MeetingContext.DefaultDateISO,
		KnownPeople:    request.MeetingContext.KnownPeople,
		Source:         source,
	})
	if err != nil {
		h.logger.Error("ingest summarization failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summarize_failed"})
		return
	}

	record, err := h.records.CreateNote(c.Request.Context(), summary, "")
	if err != nil {
		h.logger.Error("ingest record write failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record_write_failed"})
		return
	}

	h.logger.Info("note ingested",
		zap.String("source", string(source)),
		zap.String("page_id", record.PageID))
	c.JSON(http.StatusOK, recordWrittenPayload{
		OK:     true,
		PageID: record.PageID,
		URL:    record.URL,
		Title:  summary.Title,
	})
}

func (h *httpHandler) validSignature(body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.ingestSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
