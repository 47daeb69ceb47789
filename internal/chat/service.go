package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clearfield-labs/noteloop/internal/llm"
	"github.com/clearfield-labs/noteloop/internal/notion"
	"github.com/clearfield-labs/noteloop/internal/review"
)

const (
	conversationListLimit = 50
	contextWindowDays     = 30
	maxCitations          = 10
	titleRefineThreshold  = 20
	maxStoredTitleLength  = 50
)

var (
	// ErrEmptyQuestion indicates a chat request without a question.
	ErrEmptyQuestion = errors.New("chat: question is required")
	// ErrConversationNotFound indicates the conversation does not exist or
	// belongs to another user.
	ErrConversationNotFound = errors.New("chat: conversation not found")
)

// ContextStore reads stored notes for grounding.
type ContextStore interface {
	NotesInRange(ctx context.Context, start, end time.Time) ([]notion.ContextNote, error)
}

// Responder produces grounded answers and conversation titles.
type Responder interface {
	Answer(ctx context.Context, question string, notes []notion.ContextNote, windowStart, windowEnd time.Time) (string, error)
	Reply(ctx context.Context, turns []llm.Turn, notes []notion.ContextNote) (string, error)
	TitleForConversation(ctx context.Context, opening string) (string, error)
}

// ServiceConfig bundles the dependencies for the chat service.
type ServiceConfig struct {
	Store     ContextStore
	Responder Responder
	Database  *gorm.DB
	Clock     func() time.Time
	Logger    *zap.Logger
}

// Service answers ad-hoc questions and threads persistent conversations,
// both grounded in stored notes.
type Service struct {
	store     ContextStore
	responder Responder
	db        *gorm.DB
	clock     func() time.Time
	logger    *zap.Logger
}

// NewService constructs the chat service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("chat: context store is required")
	}
	if cfg.Responder == nil {
		return nil, fmt.Errorf("chat: responder is required")
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("chat: database connection is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     cfg.Store,
		responder: cfg.Responder,
		db:        cfg.Database,
		clock:     clock,
		logger:    logger,
	}, nil
}

// Citation points an answer back at a source note.
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Answer is a one-shot grounded response.
type Answer struct {
	AnswerHTML string        `json:"answer"`
	Citations  []Citation    `json:"citations"`
	Count      int           `json:"count"`
	Window     review.Window `json:"window"`
}

// Ask answers a standalone question against notes in the requested window.
func (s *Service) Ask(ctx context.Context, question, preset, start, end string) (Answer, error) {
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}

	window, err := ResolveWindow(preset, start, end, s.clock())
	if err != nil {
		return Answer{}, err
	}

	notes, err := s.store.NotesInRange(ctx, window.Start, window.End)
	if err != nil {
		return Answer{}, fmt.Errorf("chat: load context notes: %w", err)
	}

	answer, err := s.responder.Answer(ctx, question, notes, window.Start, window.End)
	if err != nil {
		return Answer{}, err
	}

	citations := make([]Citation, 0, maxCitations)
	for _, n := range notes {
		if len(citations) == maxCitations {
			break
		}
		citations = append(citations, Citation{Title: n.Title, URL: n.URL})
	}
	return Answer{AnswerHTML: answer, Citations: citations, Count: len(notes), Window: window}, nil
}

// Conversations lists a user's most recently touched conversations.
func (s *Service) Conversations(ctx context.Context, userID string) ([]Conversation, error) {
	var conversations []Conversation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(conversationListLimit).
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("chat: list conversations: %w", err)
	}
	return conversations, nil
}

// CreateConversation starts a conversation. Long opening messages are
// condensed into a short title by the model, falling back to truncation when
// the model call fails.
func (s *Service) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	if title == "" {
		title = "New Conversation"
	}
	if len(title) > titleRefineThreshold {
		refined, err := s.responder.TitleForConversation(ctx, title)
		if err != nil {
			s.logger.Warn("conversation title refinement failed", zap.Error(err))
			if len(title) > maxStoredTitleLength {
				title = title[:maxStoredTitleLength]
			}
		} else {
			title = refined
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("chat: generate conversation id: %w", err)
	}
	conversation := Conversation{
		ID:        id.String(),
		UserID:    userID,
		Title:     title,
		UpdatedAt: s.clock(),
	}
	if err := s.db.WithContext(ctx).Create(&conversation).Error; err != nil {
		return nil, fmt.Errorf("chat: create conversation: %w", err)
	}
	return &conversation, nil
}

// Messages returns a conversation's history oldest first.
func (s *Service) Messages(ctx context.Context, userID, conversationID string) ([]Message, error) {
	if err := s.ownConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	var messages []Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("chat: load messages: %w", err)
	}
	return messages, nil
}

// SendMessage appends a user message, generates the assistant reply grounded
// in recent notes, and persists both. A context lookup failure degrades to an
// ungrounded reply rather than failing the message.
func (s *Service) SendMessage(ctx context.Context, userID, conversationID, content string) (string, error) {
	if content == "" {
		return "", ErrEmptyQuestion
	}
	if err := s.ownConversation(ctx, userID, conversationID); err != nil {
		return "", err
	}

	if err := s.appendMessage(ctx, conversationID, "user", content); err != nil {
		return "", err
	}

	history, err := s.Messages(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}
	turns := make([]llm.Turn, 0, len(history))
	for _, message := range history {
		turns = append(turns, llm.Turn{Role: message.Role, Content: message.Content})
	}

	now := s.clock()
	contextStart := review.DayWindow(now.AddDate(0, 0, -contextWindowDays)).Start
	contextEnd := review.DayWindow(now).End
	notes, err := s.store.NotesInRange(ctx, contextStart, contextEnd)
	if err != nil {
		s.logger.Warn("context lookup failed, replying ungrounded", zap.Error(err))
		notes = nil
	}

	reply, err := s.responder.Reply(ctx, turns, notes)
	if err != nil {
		return "", err
	}

	if err := s.appendMessage(ctx, conversationID, "assistant", reply); err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", s.clock()).Error; err != nil {
		s.logger.Warn("conversation touch failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return reply, nil
}

func (s *Service) ownConversation(ctx context.Context, userID, conversationID string) error {
	var conversation Conversation
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		Take(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	if err != nil {
		return fmt.Errorf("chat: load conversation: %w", err)
	}
	return nil
}

func (s *Service) appendMessage(ctx context.Context, conversationID, role, content string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("chat: generate message id: %w", err)
	}
	message := Message{
		ID:             id.String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      s.clock(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return fmt.Errorf("chat: store %s message: %w", role, err)
	}
	return nil
}
