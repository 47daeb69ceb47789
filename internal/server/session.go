package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type authRequestPayload struct {
	IDToken string `json:"id_token"`
}

type sessionUserPayload struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

type sessionResponsePayload struct {
	AccessToken string             `json:"access_token"`
	ExpiresIn   int64              `json:"expires_in"`
	TokenType   string             `json:"token_type"`
	User        sessionUserPayload `json:"user"`
}

// handleAuthSession exchanges a Google ID token for a first-party session:
// verify, upsert the identity, then issue the HS256 token both as a cookie
// and in the response body.
func (h *httpHandler) handleAuthSession(c *gin.Context) {
	var request authRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.IDToken) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	identity, err := h.verifier.Verify(c.Request.Context(), request.IDToken)
	if err != nil {
		h.logger.Warn("google token verification failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userID, err := h.identities.RecordLogin(identity)
	if err != nil {
		h.logger.Error("failed to record login", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_record_failed"})
		return
	}

	token, expiresIn, err := h.sessions.Issue(identity)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_issue_failed"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), token, int(h.sessions.TTL().Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, sessionResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		User: sessionUserPayload{
			ID:      userID,
			Email:   identity.Email,
			Name:    identity.Name,
			Picture: identity.Picture,
		},
	})
}
