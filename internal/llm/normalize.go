package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clearfield-labs/noteloop/internal/note"
)

// rawSummary mirrors the model's JSON contract loosely. tldr and summary are
// kept raw because models sometimes emit them as arrays despite the prompt.
type rawSummary struct {
	Title        string          `json:"title"`
	DateISO      string          `json:"date_iso"`
	Type         string          `json:"type"`
	People       []string        `json:"people"`
	Source       string          `json:"source"`
	TLDR         json.RawMessage `json:"tldr"`
	Summary      json.RawMessage `json:"summary"`
	ActionItems  []rawActionItem `json:"action_items"`
	KeyTakeaways []string        `json:"key_takeaways"`
	FullText     *rawFullText    `json:"full_text"`
	ContentHash  string          `json:"content_hash"`
}

type rawActionItem struct {
	Owner string  `json:"owner"`
	Task  string  `json:"task"`
	Due   *string `json:"due"`
}

type rawFullText struct {
	Body              string  `json:"body"`
	TranscriptSummary *string `json:"transcript_summary"`
}

// flattenText accepts a string or an array of strings joined with separator.
func flattenText(raw json.RawMessage, separator string) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(parts, separator)
	}
	return ""
}

// normalizeSummary repairs model output drift and applies the deterministic
// fallbacks: the content hash and source always come from the caller's input
// when the model dropped or altered them, and a missing date falls back to
// the provided default.
func normalizeSummary(content []byte, input SummarizeInput) (*note.Note, error) {
	var raw rawSummary
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("llm: summarize: decode model output: %w", err)
	}

	noteType, err := note.ParseType(raw.Type)
	if err != nil {
		noteType = note.TypeOther
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

	fullText := &note.FullText{Body: input.Text}
	if raw.FullText != nil {
		if raw.FullText.Body != "" {
			fullText.Body = raw.FullText.Body
		}
		if raw.FullText.TranscriptSummary != nil {
			fullText.TranscriptSummary = *raw.FullText.TranscriptSummary
		}
	}

	dateISO := raw.DateISO
	if dateISO == "" {
		dateISO = input.DefaultDateISO
	}
	contentHash := raw.ContentHash
	if contentHash == "" {
		contentHash = note.HashContent(input.Text)
	}

	return &note.Note{
		Title:        strings.TrimSpace(raw.Title),
		DateISO:      dateISO,
		Type:         noteType,
		People:       raw.People,
		Source:       input.Source,
		TLDR:         flattenText(raw.TLDR, " "),
		Summary:      flattenText(raw.Summary, "\n\n"),
		ActionItems:  items,
		KeyTakeaways: raw.KeyTakeaways,
		FullText:     fullText,
		ContentHash:  contentHash,
	}, nil
}
