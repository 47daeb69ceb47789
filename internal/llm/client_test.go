package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearfield-labs/noteloop/internal/note"
	"github.com/clearfield-labs/noteloop/internal/notion"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	client, err := NewClient(ClientConfig{
		APIKey:     "sk-test",
		HTTPClient: &http.Client{},
		Clock:      func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return client
}

func completionResponse(content string) string {
	encoded, _ := json.Marshal(content)
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1750000000,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": %s}, "finish_reason": "stop"}]
	}`, encoded)
}

func TestSummarizeSourceNormalizesModelDrift(t *testing.T) {
	client := newTestClient(t)

	modelOutput := `{
		"title": "Weekly pipeline sync",
		"date_iso": "",
		"type": "Meeting",
		"people": ["Alice", "Bob"],
		"source": "Manual",
		"tldr": ["Pipeline is healthy.", "Owners are assigned."],
		"summary": ["First paragraph.", "Second paragraph."],
		"action_items": [
			{"owner": "Alice", "task": "Ship report", "due": "2025-01-10"},
			{"owner": "", "task": "Review PR", "due": null},
			{"owner": "Carol", "task": "  ", "due": null}
		],
		"key_takeaways": ["Pipeline healthy"],
		"full_text": {"body": "raw meeting text", "transcript_summary": null}
	}`

	var capturedRequest map[string]any
	httpmock.RegisterResponder(http.MethodPost, completionsURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&capturedRequest))
			return httpmock.NewStringResponse(http.StatusOK, completionResponse(modelOutput)), nil
		})

	result, err := client.SummarizeSource(context.Background(), SummarizeInput{
		Text:   "raw meeting text",
		Source: note.SourceOtter,
	})
	require.NoError(t, err)

	// Arrays collapse to strings, the empty date falls back to the clock
	// date, and source and hash are forced from the input.
	assert.Equal(t, "Pipeline is healthy. Owners are assigned.", result.TLDR)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", result.Summary)
	assert.Equal(t, "2025-06-15", result.DateISO)
	assert.Equal(t, note.SourceOtter, result.Source)
	assert.Equal(t, note.HashContent("raw meeting text"), result.ContentHash)

	require.Len(t, result.ActionItems, 2)
	assert.Equal(t, note.ActionItem{Owner: "Alice", Task: "Ship report", Due: "2025-01-10"}, result.ActionItems[0])
	assert.Equal(t, note.UnassignedOwner, result.ActionItems[1].Owner)

	assert.Equal(t, "gpt-4o-mini", capturedRequest["model"])
	responseFormat := capturedRequest["response_format"].(map[string]any)
	assert.Equal(t, "json_object", responseFormat["type"])
}

func TestSummarizeSourceRejectsEmptyText(t *testing.T) {
	client := newTestClient(t)

	_, err := client.SummarizeSource(context.Background(), SummarizeInput{Text: "   ", Source: note.SourceManual})
	require.Error(t, err)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestSummarizeSourceRejectsInvalidModelNote(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, completionsURL,
		httpmock.NewStringResponder(http.StatusOK, completionResponse(`{"title":""}`)))

	_, err := client.SummarizeSource(context.Background(), SummarizeInput{
		Text:   "raw meeting text",
		Source: note.SourceManual,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, note.ErrInvalidNote)
}

func TestMergeUploadsBuildsPreview(t *testing.T) {
	client := newTestClient(t)

	modelOutput := `{
		"title": "Planning session",
		"tldr": "Scoped next quarter.",
		"summary": "We planned.",
		"action_items": [{"owner": "Alice", "task": "Draft roadmap"}],
		"key_takeaways": ["Roadmap owned by Alice"],
		"people": ["Alice", "alice", "Bob", ""],
		"full_written": "## Overview\nformatted notes"
	}`

	var capturedRequest map[string]any
	httpmock.RegisterResponder(http.MethodPost, completionsURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&capturedRequest))
			return httpmock.NewStringResponse(http.StatusOK, completionResponse(modelOutput)), nil
		})

	preview, err := client.MergeUploads(context.Background(), []UploadFile{
		{Name: "notes.txt", Kind: UploadWritten, Content: "scratch notes"},
		{Name: "call.vtt", Kind: UploadTranscript, Content: "speaker one said things"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Planning session", preview.Title)
	assert.Equal(t, "2025-06-15", preview.DateISO)
	assert.Equal(t, note.TypeMeeting, preview.Type)
	assert.Equal(t, note.SourceUpload, preview.Source)
	assert.Equal(t, []string{"Alice", "Bob"}, preview.People)
	assert.Equal(t, "## Overview\nformatted notes", preview.FullText.Body)
	assert.NoError(t, preview.Validate())

	// Transcripts lead the merged context.
	messages := capturedRequest["messages"].([]any)
	userMessage := messages[1].(map[string]any)["content"].(string)
	assert.Less(t, strings.Index(userMessage, "Transcript (call.vtt)"), strings.Index(userMessage, "Written (notes.txt)"))
}

func TestMergeUploadsFallsBackToRawWritten(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodPost, completionsURL,
		httpmock.NewStringResponder(http.StatusOK, completionResponse(
			`{"title":"","tldr":"ok","summary":"ok","people":[]}`)))

	preview, err := client.MergeUploads(context.Background(), []UploadFile{
		{Name: "notes.txt", Kind: UploadWritten, Content: "scratch notes"},
	})
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", preview.Title)
	assert.Contains(t, preview.FullText.Body, "scratch notes")
}

func TestMergeUploadsRejectsEmptyList(t *testing.T) {
	client := newTestClient(t)

	_, err := client.MergeUploads(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoUploads)
}

func TestAnswerGroundsPromptInNotes(t *testing.T) {
	client := newTestClient(t)

	var capturedRequest map[string]any
	httpmock.RegisterResponder(http.MethodPost, completionsURL,
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&capturedRequest))
			return httpmock.NewStringResponse(http.StatusOK, completionResponse("<p>Deals are on track.</p>")), nil
		})

	answer, err := client.Answer(context.Background(), "How is the pipeline?", []notion.ContextNote{
		{Title: "Weekly sync", Date: "2025-06-14", SubmissionDate: "2025-06-14", TLDR: "On track.", Summary: "Reviewed.", URL: "https://notion.so/page1"},
	}, time.Date(2025, 5, 16, 0, 0, 0, 0, time.UTC), time.Date(2025, 6, 15, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "<p>Deals are on track.</p>", answer)

	assert.Equal(t, "gpt-4o", capturedRequest["model"])
	messages := capturedRequest["messages"].([]any)
	userMessage := messages[1].(map[string]any)["content"].(string)
	assert.Contains(t, userMessage, "How is the pipeline?")
	assert.Contains(t, userMessage, "Title: Weekly sync")
	assert.Contains(t, userMessage, "Link: https://notion.so/page1")
	assert.Contains(t, userMessage, "1 documents")
}
