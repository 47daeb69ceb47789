package syncer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/clearfield-labs/noteloop/internal/config"
	"github.com/clearfield-labs/noteloop/internal/drive"
	"github.com/clearfield-labs/noteloop/internal/llm"
	"github.com/clearfield-labs/noteloop/internal/note"
	"github.com/clearfield-labs/noteloop/internal/notion"
)

// DocumentSource lists and reads documents out of watched folders.
type DocumentSource interface {
	ListFolderDocs(ctx context.Context, folderID string) ([]drive.Document, error)
	DocumentText(ctx context.Context, documentID string) (drive.DocumentContent, error)
	VerifyFolderAccess(ctx context.Context, folderID string) (string, error)
}

// Summarizer structures raw document text into a note.
type Summarizer interface {
	SummarizeSource(ctx context.Context, input llm.SummarizeInput) (*note.Note, error)
}

// RecordStore persists notes and answers dedup lookups.
type RecordStore interface {
	CreateNote(ctx context.Context, n *note.Note, documentID string) (notion.CreatedRecord, error)
	FindByDocumentID(ctx context.Context, documentID string) (string, bool)
}

// ServiceConfig bundles the dependencies for the folder sync service.
type ServiceConfig struct {
	Source     DocumentSource
	Summarizer Summarizer
	Store      RecordStore
	Database   *gorm.DB
	Folders    []config.DriveFolder
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service walks the watched folders and ingests documents it has not seen.
type Service struct {
	source     DocumentSource
	summarizer Summarizer
	store      RecordStore
	db         *gorm.DB
	folders    []config.DriveFolder
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService constructs the folder sync service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("syncer: document source is required")
	}
	if cfg.Summarizer == nil {
		return nil, fmt.Errorf("syncer: summarizer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("syncer: record store is required")
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("syncer: database connection is required")
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
		source:     cfg.Source,
		summarizer: cfg.Summarizer,
		store:      cfg.Store,
		db:         cfg.Database,
		folders:    cfg.Folders,
		clock:      clock,
		logger:     logger,
	}, nil
}

// VerifyFolders confirms every configured folder is reachable before a run.
func (s *Service) VerifyFolders(ctx context.Context) error {
	for _, folder := range s.folders {
		if _, err := s.source.VerifyFolderAccess(ctx, folder.FolderID); err != nil {
			return fmt.Errorf("syncer: cannot access folder %s: %w", folder.Name, err)
		}
	}
	return nil
}

// FileResult reports the outcome for one document encountered during a run.
type FileResult struct {
	Folder       string `json:"folder"`
	File         string `json:"file"`
	Success      bool   `json:"success"`
	Deduplicated bool   `json:"deduplicated,omitempty"`
	NotionURL    string `json:"notionUrl,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Result summarizes one sync run.
type Result struct {
	Message string       `json:"message"`
	Results []FileResult `json:"results"`
}

// Processed counts files written or deduplicated during the run.
func (r Result) Processed() int {
	count := 0
	for _, result := range r.Results {
		if result.Success {
			count++
		}
	}
	return count
}

// Failed counts files that errored during the run.
func (r Result) Failed() int {
	return len(r.Results) - r.Processed()
}

// Run walks every configured folder and ingests unseen documents. A folder
// listing failure skips that folder; a single document failure is captured
// in its result and the run continues. Already-ledgered files never reach
// the summarizer.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var results []FileResult

	for _, folder := range s.folders {
		documents, err := s.source.ListFolderDocs(ctx, folder.FolderID)
		if err != nil {
			s.logger.Warn("folder listing failed",
				zap.String("folder", folder.Name),
				zap.Error(err))
			continue
		}

		seen, err := s.ledgeredFiles(folder.FolderID)
		if err != nil {
			return Result{}, fmt.Errorf("syncer: load ledger for folder %s: %w", folder.Name, err)
		}

		for _, document := range documents {
			if document.ID == "" {
				continue
			}
			if _, ok := seen[document.ID]; ok {
				continue
			}
			results = append(results, s.processDocument(ctx, folder, document))
		}
	}

	result := Result{Results: results}
	result.Message = fmt.Sprintf("Sync complete: %d processed, %d failed", result.Processed(), result.Failed())
	return result, nil
}

func (s *Service) ledgeredFiles(folderID string) (map[string]struct{}, error) {
	var rows []ProcessedFile
	if err := s.db.Where("folder_id = ?", folderID).Find(&rows).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[row.FileID] = struct{}{}
	}
	return seen, nil
}

func (s *Service) processDocument(ctx context.Context, folder config.DriveFolder, document drive.Document) FileResult {
	result := FileResult{Folder: folder.Name, File: document.Name}

	// A record that already exists just needs its ledger row restored.
	if url, found := s.store.FindByDocumentID(ctx, document.ID); found {
		if err := s.recordLedger(folder.FolderID, document, "", url); err != nil {
			result.Error = err.Error()
			return result
		}
		result.Success = true
		result.Deduplicated = true
		result.NotionURL = url
		return result
	}

	content, err := s.source.DocumentText(ctx, document.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	source, err := note.ParseSource(folder.Source)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	structured, err := s.summarizer.SummarizeSource(ctx, llm.SummarizeInput{
		Text:           content.Text,
		DefaultDateISO: s.defaultDate(document.CreatedTime),
		KnownPeople:    []string{},
		Source:         source,
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	created, err := s.store.CreateNote(ctx, structured, document.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if err := s.recordLedger(folder.FolderID, document, created.PageID, created.URL); err != nil {
		result.Error = err.Error()
		return result
	}

	s.logger.Info("document processed",
		zap.String("folder", folder.Name),
		zap.String("file", document.Name),
		zap.String("url", created.URL))

	result.Success = true
	result.NotionURL = created.URL
	return result
}

func (s *Service) defaultDate(createdTime string) string {
	if createdTime != "" {
		if parsed, err := time.Parse(time.RFC3339, createdTime); err == nil {
			return parsed.Format("2006-01-02")
		}
	}
	return s.clock().Format("2006-01-02")
}

func (s *Service) recordLedger(folderID string, document drive.Document, pageID, pageURL string) error {
	title := document.Name
	if title == "" {
		title = "Untitled"
	}
	return s.db.Create(&ProcessedFile{
		FolderID:    folderID,
		FileID:      document.ID,
		Title:       title,
		PageID:      pageID,
		PageURL:     pageURL,
		ProcessedAt: s.clock(),
	}).Error
}
