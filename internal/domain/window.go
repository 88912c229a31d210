package domain

import "time"

// DateLayout is the ISO 8601 calendar date format used for event dates.
const DateLayout = "2006-01-02"

// TimeWindow splits the acquisitions around an event into a "before" range
// [event-DaysBefore, event) and an "after" range [event, event+DaysAfter).
type TimeWindow struct {
	Event      time.Time
	DaysBefore int
	DaysAfter  int
}

// NewTimeWindow validates the window. Both day counts must be at least one.
func NewTimeWindow(event time.Time, daysBefore, daysAfter int) (TimeWindow, error) {
	if event.IsZero() {
		return TimeWindow{}, Degenerate("event_date", "must be set")
	}
	if daysBefore < 1 {
		return TimeWindow{}, Degenerate("days_before", "must be at least 1, got %d", daysBefore)
	}
	if daysAfter < 1 {
		return TimeWindow{}, Degenerate("days_after", "must be at least 1, got %d", daysAfter)
	}
	y, m, d := event.Date()
	return TimeWindow{
		Event:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		DaysBefore: daysBefore,
		DaysAfter:  daysAfter,
	}, nil
}

// Before returns the half-open pre-event range.
func (w TimeWindow) Before() (start, end time.Time) {
	return w.Event.AddDate(0, 0, -w.DaysBefore), w.Event
}

// After returns the half-open post-event range.
func (w TimeWindow) After() (start, end time.Time) {
	return w.Event, w.Event.AddDate(0, 0, w.DaysAfter)
}

// EventDay returns the half-open range covering the event day.
func (w TimeWindow) EventDay() (start, end time.Time) {
	return w.Event, w.Event.AddDate(0, 0, 1)
}

// EventDate formats the event as YYYY-MM-DD.
func (w TimeWindow) EventDate() string { return w.Event.Format(DateLayout) }
