package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clearfield-labs/noteloop/internal/note"
	"github.com/clearfield-labs/noteloop/internal/review"
	"github.com/jomei/notionapi"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	queryPageSize   = 100
	schemaCacheKey  = "database_schema"
	defaultCacheTTL = 10 * time.Minute
)

var (
	// ErrMissingToken indicates the integration token was not configured.
	ErrMissingToken = errors.New("notion: integration token is required")
	// ErrMissingDatabaseID indicates the database id was not configured.
	ErrMissingDatabaseID = errors.New("notion: database id is required")
	// ErrLookupFailure wraps record store read errors surfaced to callers.
	ErrLookupFailure = errors.New("notion: record store lookup failed")
)

// StoreConfig bundles configuration for the record store client.
type StoreConfig struct {
	Token      string
	DatabaseID string
	HTTPClient *http.Client
	CacheTTL   time.Duration
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Store reads and writes note records in the external workspace database.
type Store struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
	clock      func() time.Time
	logger     *zap.Logger
	schema     *gocache.Cache
}

// NewStore constructs a record store client.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.DatabaseID == "" {
		return nil, ErrMissingDatabaseID
	}

	options := []notionapi.ClientOption{}
	if cfg.HTTPClient != nil {
		options = append(options, notionapi.WithHTTPClient(cfg.HTTPClient))
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		client:     notionapi.NewClient(notionapi.Token(cfg.Token), options...),
		databaseID: notionapi.DatabaseID(cfg.DatabaseID),
		clock:      clock,
		logger:     logger,
		schema:     gocache.New(ttl, 2*ttl),
	}, nil
}

// ensureDatabase verifies the database handle exists before a query run. The
// successful lookup is cached so repeated queries skip the extra round trip.
func (s *Store) ensureDatabase(ctx context.Context) error {
	if _, ok := s.schema.Get(schemaCacheKey); ok {
		return nil
	}
	database, err := s.client.Database.Get(ctx, s.databaseID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLookupFailure, err)
	}
	s.schema.Set(schemaCacheKey, database, gocache.DefaultExpiration)
	return nil
}

// CreatedRecord identifies a freshly written note record.
type CreatedRecord struct {
	PageID string `json:"pageId"`
	URL    string `json:"url"`
}

// CreateNote writes a note as a new record: mapped properties plus body
// content blocks. documentID is optional and only used for dedup lookups.
func (s *Store) CreateNote(ctx context.Context, n *note.Note, documentID string) (CreatedRecord, error) {
	if err := n.Validate(); err != nil {
		return CreatedRecord{}, err
	}

	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: s.databaseID,
		},
		Properties: noteProperties(n, documentID, s.clock()),
		Children:   noteBlocks(n),
	})
	if err != nil {
		return CreatedRecord{}, fmt.Errorf("notion: create note: %w", err)
	}
	return CreatedRecord{PageID: string(page.ID), URL: pageURL(page)}, nil
}

// FindByDocumentID scans a page of records for a matching Document ID and
// returns the canonical link when found. The check fails open: a query
// failure reports not-found so a transient read error cannot permanently
// block ingestion, at the cost of a possible duplicate.
func (s *Store) FindByDocumentID(ctx context.Context, documentID string) (string, bool) {
	if documentID == "" {
		return "", false
	}
	if err := s.ensureDatabase(ctx); err != nil {
		s.logger.Warn("dedup check failing open", zap.String("document_id", documentID), zap.Error(err))
		return "", false
	}

	response, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		PageSize: queryPageSize,
	})
	if err != nil {
		s.logger.Warn("dedup check failing open", zap.String("document_id", documentID), zap.Error(err))
		return "", false
	}

	for i := range response.Results {
		page := &response.Results[i]
		if textValue(page.Properties, propDocumentID) == documentID {
			return pageURL(page), true
		}
	}
	return "", false
}

// DueForReview implements review.RecordStore. Bounds are uniformly inclusive
// (on_or_after/on_or_before); exclusive bounds with millisecond boundaries
// would drop legitimate boundary timestamps.
func (s *Store) DueForReview(ctx context.Context, window review.Window, reviewType review.Type) ([]review.PendingNote, error) {
	if err := s.ensureDatabase(ctx); err != nil {
		return nil, err
	}

	start := notionapi.Date(window.Start)
	end := notionapi.Date(window.End)
	conditions := notionapi.AndCompoundFilter{
		notionapi.PropertyFilter{
			Property: propSubmissionDate,
			Date: &notionapi.DateFilterCondition{
				OnOrAfter:  &start,
				OnOrBefore: &end,
			},
		},
	}
	switch reviewType {
	case review.TypeWeekLater:
		conditions = append(conditions,
			notionapi.PropertyFilter{
				Property: propReviewedNextDay,
				Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
			},
			// equals:false marshals to an empty condition, so the negated
			// form expresses the unchecked state.
			notionapi.PropertyFilter{
				Property: propReviewedWeekLater,
				Checkbox: &notionapi.CheckboxFilterCondition{DoesNotEqual: true},
			},
		)
	default:
		conditions = append(conditions, notionapi.PropertyFilter{
			Property: propReviewedNextDay,
			Checkbox: &notionapi.CheckboxFilterCondition{DoesNotEqual: true},
		})
	}

	response, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: conditions,
		Sorts: []notionapi.SortObject{{
			Property:  propSubmissionDate,
			Direction: notionapi.SortOrderDESC,
		}},
		PageSize: queryPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailure, err)
	}

	notes := make([]review.PendingNote, 0, len(response.Results))
	for i := range response.Results {
		notes = append(notes, s.pendingNote(&response.Results[i], reviewType))
	}
	return notes, nil
}

func (s *Store) pendingNote(page *notionapi.Page, reviewType review.Type) review.PendingNote {
	submissionDate, ok := dateValue(page.Properties, propSubmissionDate)
	if !ok {
		submissionDate = page.CreatedTime
	}
	noteDate := submissionDate
	if parsed, ok := dateValue(page.Properties, propDate); ok {
		noteDate = parsed
	}

	title := textValue(page.Properties, propTitle)
	if title == "" {
		title = "Untitled Note"
	}

	// The query filter already pins the checkbox state, but the page itself
	// is authoritative when the two disagree.
	if stage, err := review.StageFromFlags(
		checkboxValue(page.Properties, propReviewedNextDay),
		checkboxValue(page.Properties, propReviewedWeekLater),
	); err == nil {
		if due, ok := stage.DueType(); ok {
			reviewType = due
		}
	}

	return review.PendingNote{
		ID:             string(page.ID),
		Title:          title,
		Date:           noteDate.Format("2006-01-02"),
		SubmissionDate: submissionDate,
		TLDR:           textValue(page.Properties, propTLDR),
		Summary:        textValue(page.Properties, propSummary),
		KeyTakeaways:   keyTakeawaysFromMetadata(textValue(page.Properties, propMetadata)),
		ActionItems:    note.ParseActionItems(textValue(page.Properties, propActionItems)),
		URL:            pageURL(page),
		ReviewType:     reviewType,
	}
}

// ReviewFlags implements review.RecordStore: reads the record's current
// checkbox pair so the review service can derive its lifecycle stage.
func (s *Store) ReviewFlags(ctx context.Context, recordID string) (bool, bool, error) {
	page, err := s.client.Page.Get(ctx, notionapi.PageID(recordID))
	if err != nil {
		return false, false, fmt.Errorf("notion: read review flags for %s: %w", recordID, err)
	}
	return checkboxValue(page.Properties, propReviewedNextDay),
		checkboxValue(page.Properties, propReviewedWeekLater), nil
}

// ApplyReview implements review.RecordStore: writes the advanced stage's
// checkbox pair wholesale, overwrites review notes when edits were supplied
// (last-write-wins), and stamps the last review date. Records are never
// archived here.
func (s *Store) ApplyReview(ctx context.Context, update review.ReviewUpdate) error {
	nextDayDone, weekLaterDone := update.Stage.Flags()
	properties := notionapi.Properties{
		propReviewedNextDay:   notionapi.CheckboxProperty{Checkbox: nextDayDone},
		propReviewedWeekLater: notionapi.CheckboxProperty{Checkbox: weekLaterDone},
	}
	if update.Edits != "" {
		properties[propReviewNotes] = notionapi.RichTextProperty{RichText: richText(update.Edits)}
	}
	reviewedAt := notionapi.Date(update.ReviewedAt)
	properties[propLastReviewDate] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &reviewedAt}}

	_, err := s.client.Page.Update(ctx, notionapi.PageID(update.RecordID), &notionapi.PageUpdateRequest{
		Properties: properties,
	})
	if err != nil {
		return fmt.Errorf("notion: apply review for %s: %w", update.RecordID, err)
	}
	return nil
}

// NoteItem is one flattened record in the notes listing.
type NoteItem struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Title             string            `json:"title"`
	Date              string            `json:"date"`
	SubmissionDate    string            `json:"submissionDate"`
	ReviewedNextDay   bool              `json:"reviewNextDay"`
	ReviewedWeekLater bool              `json:"reviewWeekLater"`
	Source            string            `json:"source"`
	TLDR              string            `json:"tldr"`
	Summary           string            `json:"summary"`
	People            []string          `json:"people"`
	KeyTakeaways      []string          `json:"keyTakeaways"`
	ActionItems       []note.ActionItem `json:"actionItems"`
}

// ListNotes pages through the whole database and returns flattened items,
// newest submission first.
func (s *Store) ListNotes(ctx context.Context) ([]NoteItem, error) {
	if err := s.ensureDatabase(ctx); err != nil {
		return nil, err
	}

	var items []NoteItem
	var cursor notionapi.Cursor
	for {
		response, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: propTitle,
				RichText: &notionapi.TextFilterCondition{IsNotEmpty: true},
			},
			Sorts: []notionapi.SortObject{{
				Property:  propSubmissionDate,
				Direction: notionapi.SortOrderDESC,
			}},
			StartCursor: cursor,
			PageSize:    queryPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLookupFailure, err)
		}

		for i := range response.Results {
			items = append(items, s.noteItem(&response.Results[i]))
		}
		if !response.HasMore || response.NextCursor == "" {
			break
		}
		cursor = response.NextCursor
	}
	return items, nil
}

func (s *Store) noteItem(page *notionapi.Page) NoteItem {
	submissionDate, ok := dateValue(page.Properties, propSubmissionDate)
	if !ok {
		submissionDate = page.CreatedTime
	}
	noteDate := submissionDate
	if parsed, ok := dateValue(page.Properties, propDate); ok {
		noteDate = parsed
	}
	title := textValue(page.Properties, propTitle)
	if title == "" {
		title = "Untitled Note"
	}

	return NoteItem{
		ID:                string(page.ID),
		URL:               pageURL(page),
		Title:             title,
		Date:              noteDate.Format("2006-01-02"),
		SubmissionDate:    submissionDate.Format("2006-01-02"),
		ReviewedNextDay:   checkboxValue(page.Properties, propReviewedNextDay),
		ReviewedWeekLater: checkboxValue(page.Properties, propReviewedWeekLater),
		Source:            textValue(page.Properties, propSource),
		TLDR:              textValue(page.Properties, propTLDR),
		Summary:           textValue(page.Properties, propSummary),
		People:            multiSelectValues(page.Properties, propPeople),
		KeyTakeaways:      keyTakeawaysFromMetadata(textValue(page.Properties, propMetadata)),
		ActionItems:       note.ParseActionItems(textValue(page.Properties, propActionItems)),
	}
}

// ContextNote is the condensed record shape fed into chat prompts.
type ContextNote struct {
	ID             string `json:"id"`
	URL            string `json:"url"`
	Title          string `json:"title"`
	Date           string `json:"date"`
	SubmissionDate string `json:"submissionDate"`
	TLDR           string `json:"tldr"`
	Summary        string `json:"summary"`
}

// NotesInRange returns records whose submission date falls inside the
// inclusive range, for retrieval-augmented chat.
func (s *Store) NotesInRange(ctx context.Context, start, end time.Time) ([]ContextNote, error) {
	if err := s.ensureDatabase(ctx); err != nil {
		return nil, err
	}

	rangeStart := notionapi.Date(start)
	rangeEnd := notionapi.Date(end)
	response, err := s.client.Database.Query(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.AndCompoundFilter{
			notionapi.PropertyFilter{
				Property: propSubmissionDate,
				Date: &notionapi.DateFilterCondition{
					OnOrAfter:  &rangeStart,
					OnOrBefore: &rangeEnd,
				},
			},
			notionapi.PropertyFilter{
				Property: propTitle,
				RichText: &notionapi.TextFilterCondition{IsNotEmpty: true},
			},
		},
		PageSize: queryPageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailure, err)
	}

	notes := make([]ContextNote, 0, len(response.Results))
	for i := range response.Results {
		page := &response.Results[i]
		submissionDate, ok := dateValue(page.Properties, propSubmissionDate)
		if !ok {
			submissionDate = page.CreatedTime
		}
		noteDate := submissionDate
		if parsed, ok := dateValue(page.Properties, propDate); ok {
			noteDate = parsed
		}
		title := textValue(page.Properties, propTitle)
		if title == "" {
			title = "Untitled"
		}
		notes = append(notes, ContextNote{
			ID:             string(page.ID),
			URL:            pageURL(page),
			Title:          title,
			Date:           noteDate.Format("2006-01-02"),
			SubmissionDate: submissionDate.Format("2006-01-02"),
			TLDR:           textValue(page.Properties, propTLDR),
			Summary:        textValue(page.Properties, propSummary),
		})
	}
	return notes, nil
}
