package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/llm"
	"github.com/clearfield-labs/noteloop/internal/note"
)

const maxUploadBytes = 10 << 20

type uploadFilePayload struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type uploadPreviewResponsePayload struct {
	Preview *note.Note          `json:"preview"`
	Files   []uploadFilePayload `json:"files"`
}

// handleUploadPreview merges a multipart batch of transcripts and written
// notes into one draft note. Parts are numbered file_0/type_0 upward; a
// missing index ends the scan.
func (h *httpHandler) handleUploadPreview(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	var files []llm.UploadFile
	var listed []uploadFilePayload
	for index := 0; ; index++ {
		headers, ok := form.File[fmt.Sprintf("file_%d", index)]
		if !ok || len(headers) == 0 {
			break
		}

		part, err := headers[0].Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
			return
		}
		content, err := io.ReadAll(io.LimitReader(part, maxUploadBytes))
		part.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file"})
			return
		}

		kind := llm.UploadWritten
		if values := form.Value[fmt.Sprintf("type_%d", index)]; len(values) > 0 && values[0] == string(llm.UploadTranscript) {
			kind = llm.UploadTranscript
		}
		files = append(files, llm.UploadFile{
			Name:    headers[0].Filename,
			Kind:    kind,
			Content: string(content),
		})
		listed = append(listed, uploadFilePayload{Name: headers[0].Filename, Type: string(kind)})
	}

	preview, err := h.summarizer.MergeUploads(c.Request.Context(), files)
	if err != nil {
		if errors.Is(err, llm.ErrNoUploads) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no_files"})
			return
		}
		h.logger.Error("upload merge failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "merge_failed"})
		return
	}
	c.JSON(http.StatusOK, uploadPreviewResponsePayload{Preview: preview, Files: listed})
}

// handleUploadSubmit persists a previously previewed note after the user
// confirmed or edited it client-side.
func (h *httpHandler) handleUploadSubmit(c *gin.Context) {
	var submitted note.Note
	if err := c.ShouldBindJSON(&submitted); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	if err := submitted.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_note"})
		return
	}

	record, err := h.records.CreateNote(c.Request.Context(), &submitted, "")
	if err != nil {
		h.logger.Error("upload record write failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record_write_failed"})
		return
	}
	c.JSON(http.StatusOK, recordWrittenPayload{OK: true, PageID: record.PageID, URL: record.URL, Title: submitted.Title})
}
