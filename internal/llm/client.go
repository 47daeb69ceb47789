package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/clearfield-labs/noteloop/internal/note"
)

const (
	defaultSummaryModel = "gpt-4o-mini"
	defaultChatModel    = "gpt-4o"

	summaryTemperature = 0.2
)

var (
	// ErrMissingAPIKey indicates the model provider key was not configured.
	ErrMissingAPIKey = errors.New("llm: api key is required")
	// ErrEmptyCompletion indicates the model returned no usable content.
	ErrEmptyCompletion = errors.New("llm: completion returned no content")
)

// ClientConfig bundles configuration for the language model client.
type ClientConfig struct {
	APIKey       string
	SummaryModel string
	ChatModel    string
	BaseURL      string
	HTTPClient   *http.Client
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Client turns raw note text into structured notes and answers questions
// grounded in stored notes.
type Client struct {
	api          *openai.Client
	summaryModel string
	chatModel    string
	clock        func() time.Time
	logger       *zap.Logger
}

// NewClient constructs a language model client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		apiConfig.HTTPClient = cfg.HTTPClient
	}

	summaryModel := cfg.SummaryModel
	if summaryModel == "" {
		summaryModel = defaultSummaryModel
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		api:          openai.NewClientWithConfig(apiConfig),
		summaryModel: summaryModel,
		chatModel:    chatModel,
		clock:        clock,
		logger:       logger,
	}, nil
}

const summarizeSystemPrompt = `You convert a SINGLE note source into a JSON object for a notes database.
- Return VALID JSON only.
- title: concise, <= 90 chars.
- date_iso: prefer explicit date; else use provided default_date_iso.
- type: one of ["Meeting","Idea","Learning","Other"].
- people: detect names as array of strings.
- tldr: 1-2 sentences as a single string.
- summary: 3-6 short paragraphs as a single string (not an array).
- action_items: conservative [{owner, task, due|null}].
- key_takeaways: brief bullets as array of strings.
- full_text.body: include the main text provided as a single string.
- If transcript_raw is present, produce a compressed transcript summary and include it in full_text.transcript_summary as a single string.
- source is provided and must be preserved as-is.
- CRITICAL: summary and tldr must be strings, not arrays.`

// SummarizeInput is one raw source to structure into a note.
type SummarizeInput struct {
	Text           string      `json:"text"`
	TranscriptRaw  string      `json:"transcript_raw,omitempty"`
	DefaultDateISO string      `json:"default_date_iso"`
	KnownPeople    []string    `json:"known_people"`
	Source         note.Source `json:"source"`
}

// SummarizeSource structures a single raw source into a validated note.
// Model output is normalized before validation because models occasionally
// return arrays where the contract asks for strings.
func (c *Client) SummarizeSource(ctx context.Context, input SummarizeInput) (*note.Note, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, fmt.Errorf("llm: summarize: empty source text")
	}
	if input.DefaultDateISO == "" {
		input.DefaultDateISO = c.clock().Format("2006-01-02")
	}
	if input.KnownPeople == nil {
		input.KnownPeople = []string{}
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("llm: summarize: encode input: %w", err)
	}

	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.summaryModel,
		Temperature: summaryTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarizeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: summarize: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return nil, ErrEmptyCompletion
	}

	structured, err := normalizeSummary([]byte(response.Choices[0].Message.Content), input)
	if err != nil {
		return nil, err
	}
	if err := structured.Validate(); err != nil {
		return nil, fmt.Errorf("llm: summarize: %w", err)
	}
	return structured, nil
}
