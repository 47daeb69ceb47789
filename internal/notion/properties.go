package notion

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/clearfield-labs/noteloop/internal/note"
	"github.com/jomei/notionapi"
)

// Property names of the external workspace database. The schema is a fixed
// external contract; these names must match it verbatim.
const (
	propTitle             = "Title"
	propDate              = "Date"
	propType              = "Type"
	propPeople            = "People"
	propSource            = "Source"
	propTLDR              = "TLDR"
	propSummary           = "Summary"
	propActionItems       = "Action Items"
	propDueDates          = "Due Dates"
	propMetadata          = "LLM JSON"
	propSubmissionDate    = "Submission Date"
	propReviewedNextDay   = "Reviewed Next Day"
	propReviewedWeekLater = "Reviewed Week Later"
	propReviewNotes       = "Review Notes"
	propLastReviewDate    = "Last Review Date"
	propDocumentID        = "Document ID"
)

// metadataBlob is the JSON payload stored in the LLM JSON property. Key
// takeaways live here because the schema has no structured list field; the
// pending-review reader parses them back out.
type metadataBlob struct {
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	Source        string   `json:"source"`
	People        []string `json:"people"`
	KeyTakeaways  []string `json:"key_takeaways"`
	ActionCount   int      `json:"action_count"`
	HasTranscript bool     `json:"has_transcript"`
	ContentHash   string   `json:"content_hash"`
	ProcessedAt   string   `json:"processed_at"`
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}}
}

func noteProperties(n *note.Note, documentID string, processedAt time.Time) notionapi.Properties {
	people := make([]notionapi.Option, 0, len(n.People))
	for _, person := range n.People {
		people = append(people, notionapi.Option{Name: person})
	}

	hasTranscript := n.FullText != nil && n.FullText.TranscriptSummary != ""
	metadata, _ := json.Marshal(metadataBlob{
		Title:         n.Title,
		Type:          string(n.Type),
		Source:        string(n.Source),
		People:        n.People,
		KeyTakeaways:  n.KeyTakeaways,
		ActionCount:   len(n.ActionItems),
		HasTranscript: hasTranscript,
		ContentHash:   n.ContentHash,
		ProcessedAt:   processedAt.UTC().Format(time.RFC3339),
	})

	startDate, err := time.Parse("2006-01-02", n.DateISO)
	if err != nil {
		startDate = processedAt
	}
	noteDate := notionapi.Date(startDate)
	submittedAt := notionapi.Date(processedAt)

	properties := notionapi.Properties{
		propTitle:          notionapi.TitleProperty{Title: richText(n.Title)},
		propDate:           notionapi.DateProperty{Date: &notionapi.DateObject{Start: &noteDate}},
		propSubmissionDate: notionapi.DateProperty{Date: &notionapi.DateObject{Start: &submittedAt}},
		propType:           notionapi.SelectProperty{Select: notionapi.Option{Name: string(n.Type)}},
		propPeople:         notionapi.MultiSelectProperty{MultiSelect: people},
		propSource:         notionapi.SelectProperty{Select: notionapi.Option{Name: string(n.Source)}},
		propTLDR:           notionapi.RichTextProperty{RichText: richText(n.TLDR)},
		propSummary:        notionapi.RichTextProperty{RichText: richText(n.Summary)},
		propActionItems:    notionapi.RichTextProperty{RichText: richText(note.FormatActionItems(n.ActionItems))},
		propDueDates:       notionapi.RichTextProperty{RichText: richText(note.FormatDueDates(n.ActionItems))},
		propMetadata:       notionapi.RichTextProperty{RichText: richText(string(metadata))},
	}
	if documentID != "" {
		properties[propDocumentID] = notionapi.RichTextProperty{RichText: richText(documentID)}
	}
	return properties
}

func heading(text string) notionapi.Block {
	return notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeHeading2},
		Heading2:   notionapi.Heading{RichText: richText(text)},
	}
}

func paragraph(text string) notionapi.Block {
	if text == "" {
		text = "-"
	}
	return notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeParagraph},
		Paragraph:  notionapi.Paragraph{RichText: richText(text)},
	}
}

func bullet(text string) notionapi.Block {
	return notionapi.BulletedListItemBlock{
		BasicBlock:       notionapi.BasicBlock{Object: notionapi.ObjectTypeBlock, Type: notionapi.BlockTypeBulletedListItem},
		BulletedListItem: notionapi.ListItem{RichText: richText(text)},
	}
}

func noteBlocks(n *note.Note) []notionapi.Block {
	blocks := []notionapi.Block{heading("TL;DR"), paragraph(n.TLDR), heading("Key Takeaways")}

	if len(n.KeyTakeaways) > 0 {
		for _, takeaway := range n.KeyTakeaways {
			blocks = append(blocks, bullet(takeaway))
		}
	} else {
		blocks = append(blocks, paragraph("-"))
	}

	blocks = append(blocks, heading("Action Items"))
	if len(n.ActionItems) > 0 {
		for _, item := range n.ActionItems {
			line := item.Owner + ": " + item.Task
			if item.Due != "" {
				line += " (due " + item.Due + ")"
			}
			blocks = append(blocks, bullet(line))
		}
	} else {
		blocks = append(blocks, paragraph("-"))
	}

	body := ""
	if n.FullText != nil {
		body = n.FullText.Body
	}
	blocks = append(blocks, heading("Body"), paragraph(body))

	if n.FullText != nil && n.FullText.TranscriptSummary != "" {
		blocks = append(blocks, heading("Transcript Summary"), paragraph(n.FullText.TranscriptSummary))
	}
	return blocks
}

// Readers below tolerate missing or differently-typed properties; pages
// predating a schema change still need to flatten cleanly.

func textValue(properties notionapi.Properties, name string) string {
	property, ok := properties[name]
	if !ok {
		return ""
	}
	switch typed := property.(type) {
	case *notionapi.TitleProperty:
		return joinRichText(typed.Title)
	case *notionapi.RichTextProperty:
		return joinRichText(typed.RichText)
	case *notionapi.SelectProperty:
		return typed.Select.Name
	default:
		return ""
	}
}

func joinRichText(spans []notionapi.RichText) string {
	var builder strings.Builder
	for _, span := range spans {
		if span.Text != nil {
			builder.WriteString(span.Text.Content)
			continue
		}
		builder.WriteString(span.PlainText)
	}
	return builder.String()
}

func dateValue(properties notionapi.Properties, name string) (time.Time, bool) {
	property, ok := properties[name]
	if !ok {
		return time.Time{}, false
	}
	typed, ok := property.(*notionapi.DateProperty)
	if !ok || typed.Date == nil || typed.Date.Start == nil {
		return time.Time{}, false
	}
	return time.Time(*typed.Date.Start), true
}

func checkboxValue(properties notionapi.Properties, name string) bool {
	property, ok := properties[name]
	if !ok {
		return false
	}
	typed, ok := property.(*notionapi.CheckboxProperty)
	if !ok {
		return false
	}
	return typed.Checkbox
}

func multiSelectValues(properties notionapi.Properties, name string) []string {
	property, ok := properties[name]
	if !ok {
		return nil
	}
	typed, ok := property.(*notionapi.MultiSelectProperty)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(typed.MultiSelect))
	for _, option := range typed.MultiSelect {
		values = append(values, option.Name)
	}
	return values
}

func pageURL(page *notionapi.Page) string {
	if page.URL != "" {
		return page.URL
	}
	return "https://notion.so/" + strings.ReplaceAll(string(page.ID), "-", "")
}

func keyTakeawaysFromMetadata(blob string) []string {
	if strings.TrimSpace(blob) == "" {
		return nil
	}
	var metadata metadataBlob
	if err := json.Unmarshal([]byte(blob), &metadata); err != nil {
		return nil
	}
	return metadata.KeyTakeaways
}
