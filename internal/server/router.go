package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/auth"
	"github.com/clearfield-labs/noteloop/internal/chat"
	"github.com/clearfield-labs/noteloop/internal/digest"
	"github.com/clearfield-labs/noteloop/internal/llm"
	"github.com/clearfield-labs/noteloop/internal/note"
	"github.com/clearfield-labs/noteloop/internal/notion"
	"github.com/clearfield-labs/noteloop/internal/review"
	"github.com/clearfield-labs/noteloop/internal/syncer"
)

const userIDContextKey = "noteloop_user_id"

var (
	errMissingGoogleVerifier   = errors.New("google verifier dependency required")
	errMissingSessionManager   = errors.New("session manager dependency required")
	errMissingIdentityRecorder = errors.New("identity recorder dependency required")
	errMissingReviewService    = errors.New("review service dependency required")
	errMissingRecordStore      = errors.New("record store dependency required")
	errMissingSummarizer       = errors.New("summarizer dependency required")
	errMissingChatService      = errors.New("chat service dependency required")
	errMissingSyncService      = errors.New("sync service dependency required")
	errMissingDigestService    = errors.New("digest service dependency required")
	errMissingIngestSecret     = errors.New("ingest shared secret required")
)

type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (auth.GoogleIdentity, error)
}

type SessionManager interface {
	Issue(identity auth.GoogleIdentity) (string, int64, error)
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
	TTL() time.Duration
}

type IdentityRecorder interface {
	RecordLogin(identity auth.GoogleIdentity) (string, error)
}

type ReviewService interface {
	Pending(ctx context.Context) (review.PendingResult, error)
	Submit(ctx context.Context, submissions []review.Submission) review.SubmitResult
}

// RecordStore is the slice of the record store the HTTP layer writes and
// lists through.
type RecordStore interface {
	CreateNote(ctx context.Context, n *note.Note, documentID string) (notion.CreatedRecord, error)
	ListNotes(ctx context.Context) ([]notion.NoteItem, error)
}

type Summarizer interface {
	SummarizeSource(ctx context.Context, input llm.SummarizeInput) (*note.Note, error)
	MergeUploads(ctx context.Context, files []llm.UploadFile) (*note.Note, error)
}

type ChatService interface {
	Ask(ctx context.Context, question, preset, start, end string) (chat.Answer, error)
	Conversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	CreateConversation(ctx context.Context, userID, title string) (*chat.Conversation, error)
	Messages(ctx context.Context, userID, conversationID string) ([]chat.Message, error)
	SendMessage(ctx context.Context, userID, conversationID, content string) (string, error)
}

type SyncService interface {
	VerifyFolders(ctx context.Context) error
	Run(ctx context.Context) (syncer.Result, error)
}

type DigestService interface {
	Send(ctx context.Context) (digest.Email, error)
}

type Dependencies struct {
	GoogleVerifier GoogleVerifier
	Sessions       SessionManager
	Identities     IdentityRecorder
	Review         ReviewService
	Records        RecordStore
	Summarizer     Summarizer
	Chat           ChatService
	Sync           SyncService
	Digest         DigestService
	IngestSecret   string
	SyncAPIKey     string
	CronSecret     string
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.GoogleVerifier == nil {
		return nil, errMissingGoogleVerifier
	}
	if deps.Sessions == nil {
		return nil, errMissingSessionManager
	}
	if deps.Identities == nil {
		return nil, errMissingIdentityRecorder
	}
	if deps.Review == nil {
		return nil, errMissingReviewService
	}
	if deps.Records == nil {
		return nil, errMissingRecordStore
	}
	if deps.Summarizer == nil {
		return nil, errMissingSummarizer
	}
	if deps.Chat == nil {
		return nil, errMissingChatService
	}
	if deps.Sync == nil {
		return nil, errMissingSyncService
	}
	if deps.Digest == nil {
		return nil, errMissingDigestService
	}
	if strings.TrimSpace(deps.IngestSecret) == "" {
		return nil, errMissingIngestSecret
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Signature"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		verifier:     deps.GoogleVerifier,
		sessions:     deps.Sessions,
		identities:   deps.Identities,
		review:       deps.Review,
		records:      deps.Records,
		summarizer:   deps.Summarizer,
		chat:         deps.Chat,
		sync:         deps.Sync,
		digest:       deps.Digest,
		ingestSecret: deps.IngestSecret,
		syncAPIKey:   deps.SyncAPIKey,
		cronSecret:   deps.CronSecret,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/session", handler.handleAuthSession)
	router.POST("/ingest", handler.handleIngest)
	router.POST("/sync-drive", handler.handleSyncDrive)
	router.POST("/review/email", handler.handleReviewEmail)
	router.GET("/cron", handler.handleCron)

	session := router.Group("/")
	session.Use(handler.authorizeRequest)
	session.GET("/review/pending", handler.handleReviewPending)
	session.POST("/review/submit", handler.handleReviewSubmit)
	session.GET("/notes", handler.handleListNotes)
	session.POST("/chat", handler.handleChatAsk)
	session.GET("/chat/conversations", handler.handleListConversations)
	session.POST("/chat/conversations", handler.handleCreateConversation)
	session.GET("/chat/messages", handler.handleListMessages)
	session.POST("/chat/messages", handler.handleSendMessage)
	session.POST("/upload/preview", handler.handleUploadPreview)
	session.POST("/upload/submit", handler.handleUploadSubmit)

	return router, nil
}

type httpHandler struct {
	verifier     GoogleVerifier
	sessions     SessionManager
	identities   IdentityRecorder
	review       ReviewService
	records      RecordStore
	summarizer   Summarizer
	chat         ChatService
	sync         SyncService
	digest       DigestService
	ingestSecret string
	syncAPIKey   string
	cronSecret   string
	logger       *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeRequest gates interactive endpoints on a valid session token,
// read from the session cookie or the Authorization header.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		code := "unauthorized"
		if errors.Is(err, auth.ErrExpiredSessionToken) {
			code = "session_expired"
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
		return
	}
	c.Set(userIDContextKey, claims.Subject)
	c.Next()
}

func currentUserID(c *gin.Context) string {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return ""
	}
	userID, _ := value.(string)
	return userID
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func secretMatches(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
