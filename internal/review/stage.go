package review

import (
	"errors"
	"fmt"
	"strings"
)

// Type names one of the two review passes.
type Type string

const (
	// TypeNextDay is the first-pass review, due the day after submission.
	TypeNextDay Type = "next-day"
	// TypeWeekLater is the second-pass review, due seven days after submission.
	TypeWeekLater Type = "week-later"
)

var (
	// ErrUnknownReviewType indicates a review type outside the fixed pair.
	ErrUnknownReviewType = errors.New("review: unknown review type")
	// ErrInvalidStage indicates checkbox state that the lifecycle cannot
	// produce (week-later done while next-day is not).
	ErrInvalidStage = errors.New("review: invalid stage")
	// ErrStageNotAdvanceable indicates a transition the lifecycle forbids,
	// such as completing the week-later pass before the next-day pass.
	ErrStageNotAdvanceable = errors.New("review: stage cannot advance")
)

// ParseType validates a raw review type.
func ParseType(raw string) (Type, error) {
	switch Type(strings.TrimSpace(raw)) {
	case TypeNextDay:
		return TypeNextDay, nil
	case TypeWeekLater:
		return TypeWeekLater, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReviewType, raw)
	}
}

// Stage is the explicit review lifecycle derived from the record store's two
// checkbox fields: fresh, next-day-done, complete.
type Stage string

const (
	StageFresh       Stage = "fresh"
	StageNextDayDone Stage = "next-day-done"
	StageComplete    Stage = "complete"
)

// StageFromFlags derives the stage from the persisted checkbox pair. The
// week-later flag without the next-day flag has no place in the lifecycle and
// is reported as ErrInvalidStage rather than silently normalized.
func StageFromFlags(reviewedNextDay, reviewedWeekLater bool) (Stage, error) {
	switch {
	case reviewedWeekLater && !reviewedNextDay:
		return "", fmt.Errorf("%w: week-later set while next-day is not", ErrInvalidStage)
	case reviewedWeekLater:
		return StageComplete, nil
	case reviewedNextDay:
		return StageNextDayDone, nil
	default:
		return StageFresh, nil
	}
}

// Flags renders the stage back into the record store's checkbox pair.
func (s Stage) Flags() (reviewedNextDay, reviewedWeekLater bool) {
	switch s {
	case StageComplete:
		return true, true
	case StageNextDayDone:
		return true, false
	default:
		return false, false
	}
}

// Advance applies a completed review pass to the stage.
func (s Stage) Advance(t Type) (Stage, error) {
	switch {
	case s == StageFresh && t == TypeNextDay:
		return StageNextDayDone, nil
	case s == StageNextDayDone && t == TypeWeekLater:
		return StageComplete, nil
	default:
		return s, fmt.Errorf("%w: %s review on stage %s", ErrStageNotAdvanceable, t, s)
	}
}

// DueType returns the review pass a record in this stage is waiting on, or
// false when the lifecycle is finished.
func (s Stage) DueType() (Type, bool) {
	switch s {
	case StageFresh:
		return TypeNextDay, true
	case StageNextDayDone:
		return TypeWeekLater, true
	default:
		return "", false
	}
}
