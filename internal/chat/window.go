package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/clearfield-labs/noteloop/internal/review"
)

// ErrInvalidRange flags range parameters that cannot form a usable window.
var ErrInvalidRange = errors.New("chat: invalid range")

const defaultPresetDays = 30

// presetDays maps the supported quick-range presets to their day spans.
var presetDays = map[string]int{
	"30": 30,
	"60": 60,
	"90": 90,
}

// ResolveWindow turns preset or explicit date parameters into an inclusive
// window of whole calendar days. An empty preset means the default span; the
// "custom" preset reads start and end as 2006-01-02 dates with today filling
// either missing side.
func ResolveWindow(preset, start, end string, now time.Time) (review.Window, error) {
	if preset == "" {
		preset = fmt.Sprintf("%d", defaultPresetDays)
	}

	if days, ok := presetDays[preset]; ok {
		endDay := review.DayWindow(now)
		startDay := review.DayWindow(now.AddDate(0, 0, -days))
		return review.Window{Start: startDay.Start, End: endDay.End}, nil
	}
	if preset != "custom" {
		return review.Window{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidRange, preset)
	}

	startTime := now
	if start != "" {
		parsed, err := time.ParseInLocation("2006-01-02", start, now.Location())
		if err != nil {
			return review.Window{}, fmt.Errorf("%w: bad start date %q", ErrInvalidRange, start)
		}
		startTime = parsed
	}
	endTime := now
	if end != "" {
		parsed, err := time.ParseInLocation("2006-01-02", end, now.Location())
		if err != nil {
			return review.Window{}, fmt.Errorf("%w: bad end date %q", ErrInvalidRange, end)
		}
		endTime = parsed
	}

	startDay := review.DayWindow(startTime)
	endDay := review.DayWindow(endTime)
	if endDay.End.Before(startDay.Start) {
		return review.Window{}, fmt.Errorf("%w: end %s precedes start %s", ErrInvalidRange, end, start)
	}
	return review.Window{Start: startDay.Start, End: endDay.End}, nil
}
