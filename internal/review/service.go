package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/clearfield-labs/noteloop/internal/note"
	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("record store is required")
	noOpLogger      = zap.NewNop()
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "review.service.new"
	opPending    = "review.pending"
	opSubmit     = "review.submit"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// PendingNote is one record due for review, enriched with the matched review
// type and the parsed sub-structures.
type PendingNote struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Date           string            `json:"date"`
	SubmissionDate time.Time         `json:"submissionDate"`
	TLDR           string            `json:"tldr"`
	Summary        string            `json:"summary"`
	KeyTakeaways   []string          `json:"keyTakeaways"`
	ActionItems    []note.ActionItem `json:"actionItems"`
	URL            string            `json:"notionUrl"`
	ReviewType     Type              `json:"reviewType"`
}

// ReviewUpdate is one completed review pass to write back to a record. Stage
// is the post-advance lifecycle stage; the store persists its checkbox pair
// wholesale rather than flipping a single box.
type ReviewUpdate struct {
	RecordID   string
	ReviewType Type
	Stage      Stage
	Edits      string
	ReviewedAt time.Time
}

// RecordStore is the slice of the external record store the review workflow
// depends on.
type RecordStore interface {
	// DueForReview returns records whose submission date falls inside the
	// window and whose checkbox state matches the given review pass.
	DueForReview(ctx context.Context, window Window, reviewType Type) ([]PendingNote, error)
	// ReviewFlags reads the record's persisted checkbox pair.
	ReviewFlags(ctx context.Context, recordID string) (reviewedNextDay, reviewedWeekLater bool, err error)
	// ApplyReview writes the advanced stage's checkbox pair, optionally
	// overwrites the review notes, and stamps the last review date.
	ApplyReview(ctx context.Context, update ReviewUpdate) error
}

// ServiceConfig bundles the review service dependencies.
type ServiceConfig struct {
	Store    RecordStore
	Clock    func() time.Time
	Location *time.Location
	Logger   *zap.Logger
}

// Service implements the pending-review selection policy and the
// per-record-independent submission handler.
type Service struct {
	store    RecordStore
	clock    func() time.Time
	location *time.Location
	logger   *zap.Logger
}

// NewService constructs a review service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{store: cfg.Store, clock: clock, location: location, logger: logger}, nil
}

// PendingResult is the pending-review selection outcome.
type PendingResult struct {
	Notes          []PendingNote
	ReviewDate     time.Time
	NextDayCount   int
	WeekLaterCount int
	Schedule       Schedule
}

// Pending runs the two window queries independently, tags each match with its
// review type, and returns the merged set sorted by submission date
// descending. A store failure surfaces as a LookupFailure-style error with
// zero notes; it never panics past this boundary.
func (s *Service) Pending(ctx context.Context) (PendingResult, error) {
	now := s.clock().In(s.location)
	schedule := ScheduleAt(now)
	result := PendingResult{ReviewDate: now, Schedule: schedule}

	nextDay, err := s.store.DueForReview(ctx, schedule.NextDay, TypeNextDay)
	if err != nil {
		s.logError(opPending, "next_day_query_failed", err)
		return result, newServiceError(opPending, "next_day_query_failed", err)
	}

	weekLater, err := s.store.DueForReview(ctx, schedule.WeekLater, TypeWeekLater)
	if err != nil {
		s.logError(opPending, "week_later_query_failed", err)
		return result, newServiceError(opPending, "week_later_query_failed", err)
	}

	notes := make([]PendingNote, 0, len(nextDay)+len(weekLater))
	notes = append(notes, nextDay...)
	notes = append(notes, weekLater...)
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].SubmissionDate.After(notes[j].SubmissionDate)
	})

	result.Notes = notes
	result.NextDayCount = len(nextDay)
	result.WeekLaterCount = len(weekLater)
	return result, nil
}

// Submission is one reviewer decision to apply.
type Submission struct {
	RecordID   string `json:"id"`
	ReviewType string `json:"reviewType"`
	Edits      string `json:"edits"`
	Reviewed   bool   `json:"reviewed"`
}

// SubmissionOutcome reports one record's write result.
type SubmissionOutcome struct {
	ID         string `json:"id"`
	ReviewType string `json:"reviewType"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// SubmitResult aggregates a batch of review submissions. Partial success is a
// first-class outcome, not an error state.
type SubmitResult struct {
	ReviewedCount int                 `json:"reviewedCount"`
	TotalCount    int                 `json:"totalCount"`
	FailureCount  int                 `json:"failureCount"`
	SuccessfulIDs []string            `json:"successfulIds"`
	Results       []SubmissionOutcome `json:"results"`
}

// Submit applies each submission independently: one record's failure never
// aborts or rolls back the others. Each write re-reads the record's checkbox
// pair and advances the derived stage, so a pass that was already completed
// fails for that record instead of silently succeeding. Writes run
// sequentially; the record store serializes per-page updates anyway.
func (s *Service) Submit(ctx context.Context, submissions []Submission) SubmitResult {
	result := SubmitResult{
		SuccessfulIDs: make([]string, 0, len(submissions)),
		Results:       make([]SubmissionOutcome, 0, len(submissions)),
	}

	for _, submission := range submissions {
		outcome := SubmissionOutcome{ID: submission.RecordID, ReviewType: submission.ReviewType}

		reviewType, err := ParseType(submission.ReviewType)
		if err == nil && strings.TrimSpace(submission.RecordID) == "" {
			err = errors.New("record id is required")
		}
		var advanced Stage
		if err == nil {
			advanced, err = s.advanceStage(ctx, submission.RecordID, reviewType)
		}
		if err == nil {
			err = s.store.ApplyReview(ctx, ReviewUpdate{
				RecordID:   submission.RecordID,
				ReviewType: reviewType,
				Stage:      advanced,
				Edits:      strings.TrimSpace(submission.Edits),
				ReviewedAt: s.clock().In(s.location),
			})
		}

		if err != nil {
			s.logError(opSubmit, "update_failed", err, zap.String("record_id", submission.RecordID))
			outcome.Error = err.Error()
			result.FailureCount++
		} else {
			outcome.Success = true
			result.ReviewedCount++
			result.SuccessfulIDs = append(result.SuccessfulIDs, submission.RecordID)
		}
		result.Results = append(result.Results, outcome)
		result.TotalCount++
	}

	return result
}

// advanceStage reads the record's persisted checkbox pair and advances the
// derived stage by one review pass. ErrStageNotAdvanceable and ErrInvalidStage
// surface unwrapped so callers can match them per record.
func (s *Service) advanceStage(ctx context.Context, recordID string, reviewType Type) (Stage, error) {
	nextDayDone, weekLaterDone, err := s.store.ReviewFlags(ctx, recordID)
	if err != nil {
		return "", err
	}
	stage, err := StageFromFlags(nextDayDone, weekLaterDone)
	if err != nil {
		return "", err
	}
	return stage.Advance(reviewType)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("review service error", attrs...)
}
