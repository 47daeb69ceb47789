package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/clearfield-labs/noteloop/internal/config"
	"github.com/clearfield-labs/noteloop/internal/drive"
	"github.com/clearfield-labs/noteloop/internal/llm"
	"github.com/clearfield-labs/noteloop/internal/note"
	"github.com/clearfield-labs/noteloop/internal/notion"
)

type fakeSource struct {
	documents map[string][]drive.Document
	texts     map[string]string
	listErr   error
	textErr   error
	verifyErr error
}

func (f *fakeSource) ListFolderDocs(_ context.Context, folderID string) ([]drive.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.documents[folderID], nil
}

func (f *fakeSource) DocumentText(_ context.Context, documentID string) (drive.DocumentContent, error) {
	if f.textErr != nil {
		return drive.DocumentContent{}, f.textErr
	}
	return drive.DocumentContent{DocumentID: documentID, Title: "doc", Text: f.texts[documentID]}, nil
}

func (f *fakeSource) VerifyFolderAccess(_ context.Context, folderID string) (string, error) {
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	return "Folder " + folderID, nil
}

type fakeSummarizer struct {
	inputs []llm.SummarizeInput
	err    error
}

func (f *fakeSummarizer) SummarizeSource(_ context.Context, input llm.SummarizeInput) (*note.Note, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &note.Note{
		Title:       "Summarized " + input.Text,
		DateISO:     input.DefaultDateISO,
		Type:        note.TypeMeeting,
		Source:      input.Source,
		TLDR:        "tldr",
		Summary:     "summary",
		FullText:    &note.FullText{Body: input.Text},
		ContentHash: note.HashContent(input.Text),
	}, nil
}

type fakeStore struct {
	existing  map[string]string
	created   []string
	createErr error
}

func (f *fakeStore) CreateNote(_ context.Context, n *note.Note, documentID string) (notion.CreatedRecord, error) {
	if f.createErr != nil {
		return notion.CreatedRecord{}, f.createErr
	}
	f.created = append(f.created, documentID)
	return notion.CreatedRecord{PageID: "page-" + documentID, URL: "https://notion.so/" + documentID}, nil
}

func (f *fakeStore) FindByDocumentID(_ context.Context, documentID string) (string, bool) {
	url, ok := f.existing[documentID]
	return url, ok
}

func openTestDatabase(testContext *testing.T) *gorm.DB {
	testContext.Helper()
	databasePath := filepath.Join(testContext.TempDir(), "syncer.db")
	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&ProcessedFile{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	return database
}

func newTestService(testContext *testing.T, source *fakeSource, summarizer *fakeSummarizer, store *fakeStore, database *gorm.DB) *Service {
	testContext.Helper()
	service, err := NewService(ServiceConfig{
		Source:     source,
		Summarizer: summarizer,
		Store:      store,
		Database:   database,
		Folders: []config.DriveFolder{
			{FolderID: "folder-1", Source: "Otter", Name: "Otter Notes"},
		},
		Clock: func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		testContext.Fatalf("failed to build service: %v", err)
	}
	return service
}

func TestRunProcessesUnseenDocuments(testContext *testing.T) {
	source := &fakeSource{
		documents: map[string][]drive.Document{
			"folder-1": {
				{ID: "doc-1", Name: "Monday standup", CreatedTime: "2025-06-14T09:00:00.000Z"},
			},
		},
		texts: map[string]string{"doc-1": "raw standup text"},
	}
	summarizer := &fakeSummarizer{}
	store := &fakeStore{}
	database := openTestDatabase(testContext)
	service := newTestService(testContext, source, summarizer, store, database)

	result, err := service.Run(context.Background())
	if err != nil {
		testContext.Fatalf("run failed: %v", err)
	}
	if result.Processed() != 1 || result.Failed() != 0 {
		testContext.Fatalf("expected 1 processed, 0 failed, got %d/%d", result.Processed(), result.Failed())
	}
	if result.Message != "Sync complete: 1 processed, 0 failed" {
		testContext.Fatalf("unexpected message %q", result.Message)
	}
	if len(summarizer.inputs) != 1 {
		testContext.Fatalf("expected one summarize call, got %d", len(summarizer.inputs))
	}
	if summarizer.inputs[0].DefaultDateISO != "2025-06-14" {
		testContext.Fatalf("expected default date from file creation time, got %q", summarizer.inputs[0].DefaultDateISO)
	}
	if summarizer.inputs[0].Source != note.SourceOtter {
		testContext.Fatalf("expected folder source, got %q", summarizer.inputs[0].Source)
	}

	var row ProcessedFile
	if err := database.Where("folder_id = ? AND file_id = ?", "folder-1", "doc-1").Take(&row).Error; err != nil {
		testContext.Fatalf("expected ledger row: %v", err)
	}
	if row.PageURL != "https://notion.so/doc-1" {
		testContext.Fatalf("unexpected ledger url %q", row.PageURL)
	}
}

func TestRunSkipsLedgeredDocuments(testContext *testing.T) {
	source := &fakeSource{
		documents: map[string][]drive.Document{
			"folder-1": {{ID: "doc-1", Name: "Monday standup"}},
		},
		texts: map[string]string{"doc-1": "raw standup text"},
	}
	summarizer := &fakeSummarizer{}
	store := &fakeStore{}
	database := openTestDatabase(testContext)

	ledgered := ProcessedFile{FolderID: "folder-1", FileID: "doc-1", Title: "Monday standup", ProcessedAt: time.Now()}
	if err := database.Create(&ledgered).Error; err != nil {
		testContext.Fatalf("failed to seed ledger: %v", err)
	}

	service := newTestService(testContext, source, summarizer, store, database)
	result, err := service.Run(context.Background())
	if err != nil {
		testContext.Fatalf("run failed: %v", err)
	}
	if len(result.Results) != 0 {
		testContext.Fatalf("expected no results for ledgered file, got %d", len(result.Results))
	}
	if len(summarizer.inputs) != 0 {
		testContext.Fatalf("ledgered file must not reach the summarizer")
	}
}

func TestRunRestoresLedgerForExistingRecords(testContext *testing.T) {
	source := &fakeSource{
		documents: map[string][]drive.Document{
			"folder-1": {{ID: "doc-1", Name: "Monday standup"}},
		},
	}
	summarizer := &fakeSummarizer{}
	store := &fakeStore{existing: map[string]string{"doc-1": "https://notion.so/existing"}}
	database := openTestDatabase(testContext)
	service := newTestService(testContext, source, summarizer, store, database)

	result, err := service.Run(context.Background())
	if err != nil {
		testContext.Fatalf("run failed: %v", err)
	}
	if len(result.Results) != 1 || !result.Results[0].Deduplicated {
		testContext.Fatalf("expected one deduplicated result, got %+v", result.Results)
	}
	if result.Results[0].NotionURL != "https://notion.so/existing" {
		testContext.Fatalf("expected existing record url, got %q", result.Results[0].NotionURL)
	}
	if len(summarizer.inputs) != 0 {
		testContext.Fatalf("deduplicated file must not reach the summarizer")
	}

	var row ProcessedFile
	if err := database.Where("file_id = ?", "doc-1").Take(&row).Error; err != nil {
		testContext.Fatalf("expected restored ledger row: %v", err)
	}
}

func TestRunCapturesPerDocumentFailures(testContext *testing.T) {
	source := &fakeSource{
		documents: map[string][]drive.Document{
			"folder-1": {
				{ID: "doc-1", Name: "good doc"},
				{ID: "doc-2", Name: "bad doc"},
			},
		},
		texts: map[string]string{"doc-1": "good text", "doc-2": "bad text"},
	}
	summarizer := &fakeSummarizer{}
	store := &fakeStore{}
	database := openTestDatabase(testContext)
	service := newTestService(testContext, source, summarizer, store, database)

	// Fail only the second create by flipping the error after the first.
	calls := 0
	failingStore := &fakeStore{}
	service.store = storeFunc{
		create: func(ctx context.Context, n *note.Note, documentID string) (notion.CreatedRecord, error) {
			calls++
			if documentID == "doc-2" {
				return notion.CreatedRecord{}, errors.New("record store down")
			}
			return failingStore.CreateNote(ctx, n, documentID)
		},
	}

	result, err := service.Run(context.Background())
	if err != nil {
		testContext.Fatalf("run failed: %v", err)
	}
	if result.Processed() != 1 || result.Failed() != 1 {
		testContext.Fatalf("expected 1 processed and 1 failed, got %d/%d", result.Processed(), result.Failed())
	}
	if result.Results[1].Error == "" {
		testContext.Fatalf("expected captured error for failed document")
	}
	if calls != 2 {
		testContext.Fatalf("expected both documents attempted, got %d", calls)
	}
}

func TestVerifyFoldersSurfacesAccessError(testContext *testing.T) {
	source := &fakeSource{verifyErr: errors.New("forbidden")}
	database := openTestDatabase(testContext)
	service := newTestService(testContext, source, &fakeSummarizer{}, &fakeStore{}, database)

	if err := service.VerifyFolders(context.Background()); err == nil {
		testContext.Fatalf("expected verification error")
	}
}

type storeFunc struct {
	create func(context.Context, *note.Note, string) (notion.CreatedRecord, error)
}

func (s storeFunc) CreateNote(ctx context.Context, n *note.Note, documentID string) (notion.CreatedRecord, error) {
	return s.create(ctx, n, documentID)
}

func (s storeFunc) FindByDocumentID(context.Context, string) (string, bool) {
	return "", false
}
