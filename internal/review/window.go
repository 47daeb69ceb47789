package review

import "time"

// Window is one inclusive calendar-day interval, local midnight through
// 23:59:59.999 of the same date.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window, bounds inclusive.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// DayWindow returns the calendar-day window covering t in t's location.
func DayWindow(t time.Time) Window {
	year, month, day := t.Date()
	return Window{
		Start: time.Date(year, month, day, 0, 0, 0, 0, t.Location()),
		End:   time.Date(year, month, day, 23, 59, 59, 999_000_000, t.Location()),
	}
}

// Schedule holds the two trailing review windows computed from "now".
type Schedule struct {
	NextDay   Window
	WeekLater Window
}

// ScheduleAt computes the next-day window (yesterday) and the week-later
// window (seven days ago). Offsets are calendar subtractions via AddDate, not
// 24h multiples, so the windows stay aligned across DST transitions.
func ScheduleAt(now time.Time) Schedule {
	return Schedule{
		NextDay:   DayWindow(now.AddDate(0, 0, -1)),
		WeekLater: DayWindow(now.AddDate(0, 0, -7)),
	}
}
