package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/clearfield-labs/noteloop/internal/note"
)

// UploadKind distinguishes the two raw upload flavors.
type UploadKind string

const (
	UploadTranscript UploadKind = "transcript"
	UploadWritten    UploadKind = "written"
)

// ErrNoUploads indicates a merge request carried no files.
var ErrNoUploads = errors.New("llm: no files to merge")

// UploadFile is one raw uploaded document.
type UploadFile struct {
	Name    string
	Kind    UploadKind
	Content string
}

const mergeSystemPrompt = `You are a diligent executive assistant.
Create ONE cohesive summary and ONE cohesive action items section that integrates both transcripts and written notes.
Identify the people present in the meeting from names, speakers, or mentions. Use simple names (first + last when available).

For written notes, produce a beautifully formatted version while keeping meaning verbatim:
- Clean up spacing and line breaks; put distinct ideas on their own lines
- Normalize bullets/sub-bullets with clear hierarchy
- Lightly correct obvious spelling/grammar and fix clearly wrong words in context
- Add tasteful emojis for section headers and to break up dense text
- Add clear section headers where helpful (e.g., Overview, Decisions, Next Steps)
- Do not remove ideas or content; preserve meaning and details

Output JSON with fields:
- title (string)
- tldr (string)
- summary (string)
- action_items (array of {owner, task, due?})
- key_takeaways (array of strings)
- people (array of strings, unique)
- full_written (string; formatted, organized version of all written notes with emojis and structure)
Do not include any other fields.`

type rawMergeResult struct {
	Title        string          `json:"title"`
	TLDR         json.RawMessage `json:"tldr"`
	Summary      json.RawMessage `json:"summary"`
	ActionItems  []rawActionItem `json:"action_items"`
	KeyTakeaways []string        `json:"key_takeaways"`
	People       []string        `json:"people"`
	FullWritten  string          `json:"full_written"`
}

// MergeUploads combines transcripts and written notes for one meeting into a
// single note preview. Transcripts lead the merged context so the model
// treats written notes as annotations on top of them.
func (c *Client) MergeUploads(ctx context.Context, files []UploadFile) (*note.Note, error) {
	if len(files) == 0 {
		return nil, ErrNoUploads
	}

	var transcriptParts, writtenParts []string
	for _, file := range files {
		switch file.Kind {
		case UploadTranscript:
			transcriptParts = append(transcriptParts, fmt.Sprintf("Transcript (%s)\n\n%s", file.Name, file.Content))
		default:
			writtenParts = append(writtenParts, fmt.Sprintf("Written (%s)\n\n%s", file.Name, file.Content))
		}
	}
	mergedContext := strings.Join(append(transcriptParts, writtenParts...), "\n\n---\n\n")

	response, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.summaryModel,
		Temperature: summaryTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: mergeSystemPrompt},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Here are the materials for a single meeting or topic. Merge and summarize into one note.\n\n" + mergedContext,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: merge uploads: %w", err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return nil, ErrEmptyCompletion
	}

	var raw rawMergeResult
	if err := json.Unmarshal([]byte(response.Choices[0].Message.Content), &raw); err != nil {
		return nil, fmt.Errorf("llm: merge uploads: decode model output: %w", err)
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = files[0].Name
	}
	body := raw.FullWritten
	if body == "" {
		body = strings.Join(writtenParts, "\n\n---\n\n")
	}

	items := make([]note.ActionItem, 0, len(raw.ActionItems))
	for _, item := range raw.ActionItems {
		if strings.TrimSpace(item.Task) == "" {
			continue
		}
		owner := strings.TrimSpace(item.Owner)
		if owner == "" {
			owner = note.UnassignedOwner
		}
		due := ""
		if item.Due != nil {
			due = strings.TrimSpace(*item.Due)
		}
		items = append(items, note.ActionItem{Owner: owner, Task: strings.TrimSpace(item.Task), Due: due})
	}

	return &note.Note{
		Title:        title,
		DateISO:      c.clock().Format("2006-01-02"),
		Type:         note.TypeMeeting,
		People:       uniquePeople(raw.People),
		Source:       note.SourceUpload,
		TLDR:         flattenText(raw.TLDR, " "),
		Summary:      flattenText(raw.Summary, "\n\n"),
		ActionItems:  items,
		KeyTakeaways: raw.KeyTakeaways,
		FullText:     &note.FullText{Body: body},
		ContentHash:  note.HashContent(mergedContext),
	}, nil
}

func uniquePeople(people []string) []string {
	seen := make(map[string]struct{}, len(people))
	unique := make([]string, 0, len(people))
	for _, person := range people {
		person = strings.TrimSpace(person)
		if person == "" {
			continue
		}
		key := strings.ToLower(person)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, person)
	}
	return unique
}
