package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/chat"
)

type chatAskPayload struct {
	Question string `json:"question"`
}

type askResponsePayload struct {
	Answer      string          `json:"answer"`
	Citations   []chat.Citation `json:"citations"`
	Count       int             `json:"count"`
	WindowStart string          `json:"windowStart"`
	WindowEnd   string          `json:"windowEnd"`
}

// handleChatAsk answers a one-off question grounded in the notes from the
// requested window. Range parameters ride the query string so the body stays
// a plain question.
func (h *httpHandler) handleChatAsk(c *gin.Context) {
	var request chatAskPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	answer, err := h.chat.Ask(c.Request.Context(),
		strings.TrimSpace(request.Question),
		c.Query("preset"), c.Query("start"), c.Query("end"))
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty_question"})
		case errors.Is(err, chat.ErrInvalidRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_range"})
		default:
			h.logger.Error("chat answer failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chat_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, askResponsePayload{
		Answer:      answer.AnswerHTML,
		Citations:   answer.Citations,
		Count:       answer.Count,
		WindowStart: answer.Window.Start.Format("2006-01-02"),
		WindowEnd:   answer.Window.End.Format("2006-01-02"),
	})
}

func (h *httpHandler) handleListConversations(c *gin.Context) {
	conversations, err := h.chat.Conversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.logger.Error("conversation listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation_lookup_failed"})
		return
	}
	if conversations == nil {
		conversations = []chat.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

type createConversationPayload struct {
	Title string `json:"title"`
}

func (h *httpHandler) handleCreateConversation(c *gin.Context) {
	var request createConversationPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	conversation, err := h.chat.CreateConversation(c.Request.Context(), currentUserID(c), request.Title)
	if err != nil {
		h.logger.Error("conversation create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "conversation_create_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

func (h *httpHandler) handleListMessages(c *gin.Context) {
	conversationID := strings.TrimSpace(c.Query("conversation_id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	messages, err := h.chat.Messages(c.Request.Context(), currentUserID(c), conversationID)
	if err != nil {
		if errors.Is(err, chat.ErrConversationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation_not_found"})
			return
		}
		h.logger.Error("message listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message_lookup_failed"})
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type sendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

func (h *httpHandler) handleSendMessage(c *gin.Context) {
	var request sendMessagePayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.ConversationID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	reply, err := h.chat.SendMessage(c.Request.Context(), currentUserID(c),
		request.ConversationID, strings.TrimSpace(request.Content))
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty_content"})
		case errors.Is(err, chat.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation_not_found"})
		default:
			h.logger.Error("chat reply failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chat_failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
