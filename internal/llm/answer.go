package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clearfield-labs/noteloop/internal/notion"
)

const answerSystemPrompt = `You are an expert executive assistant for a Revenue Operations manager.
Use the provided notes as primary context. When helpful, you may use up-to-date web knowledge, but prioritize the notes.
Synthesize thorough, actionable answers. Format your response as clean HTML with proper styling:
- Use <h2> for main headings, <h3> for subheadings
- Use <strong> for bold text, <em> for emphasis
- Use <ul> and <li> for bullet points
- Use <p> for paragraphs with proper spacing
- Use <a href="url">title</a> for links
- Keep the HTML clean and semantic, no raw markdown
- Do NOT wrap your response in code blocks or markdown formatting
- Cite relevant notes by title with links at the end under a heading "Sources".
If a note is referenced, include its link in the sources.`

// ContextBlock renders one note as a prompt context block.
func ContextBlock(n notion.ContextNote) string {
	return fmt.Sprintf("Title: %s\nDate: %s\nSubmitted: %s\nTLDR: %s\nSummary: %s\nLink: %s",
		n.Title, n.Date, n.SubmissionDate, n.TLDR, n.Summary, n.URL)
}

// Answer responds to a question grounded in the supplied notes. The returned
// answer is HTML for direct rendering.
func (c *Client) Answer(ctx context.Context, question string, notes []notion.ContextNote, windowStart, windowEnd time.Time) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("llm: answer: empty question")
	}

	blocks := make([]string, 0, len(notes))
	for _, n := range notes {
		blocks = append(blocks, ContextBlock(n))
	}

	prompt := fmt.Sprintf("User question: %s\n\nNotes context (%d documents, %s to %s):\n\n%s",
		question,
		len(notes),
		windowStart.Format("Mon Jan 2 2006"),
		windowEnd.Format("Mon Jan 2 2006"),
		strings.Join(blocks, "\n\n---\n\n"),
	)

	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: answerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: answer: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return response.Choices[0].Message.Content, nil
}

// Turn is one prior message in a conversation.
type Turn struct {
	Role    string
	Content string
}

// Reply continues a conversation. Notes context rides on the system prompt so
// the full history stays intact for the model.
func (c *Client) Reply(ctx context.Context, turns []Turn, notes []notion.ContextNote) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("llm: reply: empty conversation")
	}

	system := answerSystemPrompt
	if len(notes) > 0 {
		blocks := make([]string, 0, len(notes))
		for _, n := range notes {
			blocks = append(blocks, ContextBlock(n))
		}
		system += fmt.Sprintf("\n\nRelevant notes context (%d documents, last 30 days):\n\n%s",
			len(notes), strings.Join(blocks, "\n\n---\n\n"))
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{Role: turn.Role, Content: turn.Content})
	}

	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("llm: reply: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return "", ErrEmptyCompletion
	}
	return response.Choices[0].Message.Content, nil
}

// TitleForConversation condenses an opening message into a short title.
func (c *Client) TitleForConversation(ctx context.Context, opening string) (string, error) {
	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("Create a concise, descriptive title (3-6 words) for a chat conversation that started with this message: %q", opening),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("llm: conversation title: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	title := strings.TrimSpace(response.Choices[0].Message.Content)
	if title == "" || len(title) >= 50 {
		return "", ErrEmptyCompletion
	}
	return title, nil
}
