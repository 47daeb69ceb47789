package review

import (
	"errors"
	"testing"
)

func TestStageFromFlags(t *testing.T) {
	cases := []struct {
		name      string
		nextDay   bool
		weekLater bool
		expected  Stage
		invalid   bool
	}{
		{name: "fresh", expected: StageFresh},
		{name: "next_day_done", nextDay: true, expected: StageNextDayDone},
		{name: "complete", nextDay: true, weekLater: true, expected: StageComplete},
		{name: "week_later_without_next_day", weekLater: true, invalid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stage, err := StageFromFlags(tc.nextDay, tc.weekLater)
			if tc.invalid {
				if !errors.Is(err, ErrInvalidStage) {
					t.Fatalf("expected ErrInvalidStage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if stage != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, stage)
			}
		})
	}
}

func TestStageAdvanceHappyPath(t *testing.T) {
	stage, err := StageFresh.Advance(TypeNextDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stage != StageNextDayDone {
		t.Fatalf("expected next-day-done, got %s", stage)
	}

	stage, err = stage.Advance(TypeWeekLater)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stage != StageComplete {
		t.Fatalf("expected complete, got %s", stage)
	}
}

func TestStageAdvanceRejectsSkippedPass(t *testing.T) {
	if _, err := StageFresh.Advance(TypeWeekLater); !errors.Is(err, ErrStageNotAdvanceable) {
		t.Fatalf("week-later on fresh must be rejected, got %v", err)
	}
}

func TestStageAdvanceRejectsRepeatedPass(t *testing.T) {
	if _, err := StageNextDayDone.Advance(TypeNextDay); !errors.Is(err, ErrStageNotAdvanceable) {
		t.Fatalf("repeating next-day must be rejected, got %v", err)
	}
	if _, err := StageComplete.Advance(TypeWeekLater); !errors.Is(err, ErrStageNotAdvanceable) {
		t.Fatalf("advancing complete must be rejected, got %v", err)
	}
}

func TestStageFlagsRoundTrip(t *testing.T) {
	for _, stage := range []Stage{StageFresh, StageNextDayDone, StageComplete} {
		nextDay, weekLater := stage.Flags()
		back, err := StageFromFlags(nextDay, weekLater)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", stage, err)
		}
		if back != stage {
			t.Fatalf("round trip mismatch: %s -> %s", stage, back)
		}
	}
}

func TestDueTypeFollowsLifecycle(t *testing.T) {
	if due, ok := StageFresh.DueType(); !ok || due != TypeNextDay {
		t.Fatalf("fresh should wait on next-day, got %s %v", due, ok)
	}
	if due, ok := StageNextDayDone.DueType(); !ok || due != TypeWeekLater {
		t.Fatalf("next-day-done should wait on week-later, got %s %v", due, ok)
	}
	if _, ok := StageComplete.DueType(); ok {
		t.Fatalf("complete waits on nothing")
	}
}

func TestParseTypeRejectsUnknown(t *testing.T) {
	if _, err := ParseType("monthly"); !errors.Is(err, ErrUnknownReviewType) {
		t.Fatalf("expected ErrUnknownReviewType, got %v", err)
	}
}
