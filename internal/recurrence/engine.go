// Package recurrence computes occurrence dates for recurrence rules. All
// functions are pure: the cached NextOccurrence/LastExecuted fields on the
// rule are maintained by the schedule runner, never here.
package recurrence

import (
	"fmt"
	"iter"
	"time"

	"github.com/tally-dev/tally/internal/model"
)

// InvalidDateError reports a rule whose frequency needs a day configuration
// it does not have.
type InvalidDateError struct {
	Reason string
}

func (e InvalidDateError) Error() string {
	return "invalid recurrence rule: " + e.Reason
}

// NextOccurrence returns the first occurrence of the rule strictly after
// from. ok is false when the rule has no further occurrences (candidate past
// EndDate). The weekend adjustment applies only to the final candidate,
// never to intermediate period advances.
func NextOccurrence(r model.RecurrenceRule, from time.Time) (next time.Time, ok bool, err error) {
	if err := validate(r); err != nil {
		return time.Time{}, false, err
	}
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	from = day(from)

	raw, err := rawCandidate(r, from)
	if err != nil {
		return time.Time{}, false, err
	}

	// previous_friday can pull a candidate back to or before from; advance
	// whole periods until the adjusted date strictly follows from. Each
	// advance moves the raw candidate forward, so this terminates.
	candidate := adjust(raw, r.Weekend)
	for !candidate.After(from) {
		raw = advance(r, raw, interval)
		candidate = adjust(raw, r.Weekend)
	}

	if r.HasEnd() && candidate.After(day(r.EndDate)) {
		return time.Time{}, false, nil
	}
	return candidate, true, nil
}

// rawCandidate computes the unadjusted candidate for the period containing
// from, per frequency. It may land on or before from; the caller advances.
func rawCandidate(r model.RecurrenceRule, from time.Time) (time.Time, error) {
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	switch r.Frequency {
	case model.Daily:
		return from.AddDate(0, 0, interval), nil
	case model.Weekly:
		days := (int(r.DayOfWeek) - int(from.Weekday()) + 7) % 7
		if days == 0 {
			days = 7 * interval
		}
		return from.AddDate(0, 0, days), nil
	case model.Monthly:
		return clampedDate(from.Year(), from.Month(), r.DayOfMonth), nil
	case model.Yearly:
		return clampedDate(from.Year(), r.MonthOfYear, r.DayOfMonth), nil
	default:
		return time.Time{}, InvalidDateError{Reason: fmt.Sprintf("unknown frequency %q", r.Frequency)}
	}
}

// advance moves a raw candidate forward one interval's worth of periods,
// reclamping month-based rules to the target month's length.
func advance(r model.RecurrenceRule, raw time.Time, interval int) time.Time {
	switch r.Frequency {
	case model.Daily:
		return raw.AddDate(0, 0, interval)
	case model.Weekly:
		return raw.AddDate(0, 0, 7*interval)
	case model.Monthly:
		y, m := raw.Year(), int(raw.Month())+interval
		return clampedDate(y, time.Month(m), r.DayOfMonth)
	default: // yearly
		return clampedDate(raw.Year()+interval, r.MonthOfYear, r.DayOfMonth)
	}
}

func validate(r model.RecurrenceRule) error {
	switch r.Frequency {
	case model.Weekly:
		if !r.DayOfWeekSet {
			return InvalidDateError{Reason: "weekly rule has no day of week"}
		}
	case model.Monthly:
		if r.DayOfMonth < 1 {
			return InvalidDateError{Reason: "monthly rule has no day of month"}
		}
	case model.Yearly:
		if r.DayOfMonth < 1 {
			return InvalidDateError{Reason: "yearly rule has no day of month"}
		}
		if r.MonthOfYear < time.January || r.MonthOfYear > time.December {
			return InvalidDateError{Reason: "yearly rule has no month of year"}
		}
	}
	return nil
}

// Occurrences returns a lazy, finite sequence of the rule's occurrences
// within [from, to]. Restartable: ranging twice yields the same dates.
func Occurrences(r model.RecurrenceRule, from, to time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		cursor := day(from).AddDate(0, 0, -1)
		if start := day(r.StartDate); start.After(day(from)) {
			cursor = start.AddDate(0, 0, -1)
		}
		end := day(to)
		for {
			next, ok, err := NextOccurrence(r, cursor)
			if err != nil || !ok || next.After(end) {
				return
			}
			if !yield(next) {
				return
			}
			// NextOccurrence is strictly monotonic, so the cursor always
			// moves and the loop is finite over any bounded range.
			cursor = next
		}
	}
}

// ShouldExecute reports whether the rule fires exactly on the given date:
// the date lies in [StartDate, EndDate], equals a weekend-adjusted occurrence
// of the pattern, and has not already been executed that calendar day.
func ShouldExecute(r model.RecurrenceRule, on time.Time) bool {
	if !r.IsActive {
		return false
	}
	on = day(on)
	if on.Before(day(r.StartDate)) {
		return false
	}
	if r.HasEnd() && on.After(day(r.EndDate)) {
		return false
	}
	if !r.LastExecuted.IsZero() && day(r.LastExecuted).Equal(on) {
		return false
	}
	// A shifting adjustment means the raw weekend day itself never executes.
	if isWeekend(on) && r.Weekend != model.WeekendNone {
		return false
	}

	// The adjusted occurrence lies within two days of its raw pattern date,
	// so scan the nearby raw dates for one that adjusts onto this day.
	for delta := -2; delta <= 2; delta++ {
		raw := on.AddDate(0, 0, delta)
		if raw.Before(day(r.StartDate)) {
			continue
		}
		if matchesPattern(r, raw) && adjust(raw, r.Weekend).Equal(on) {
			return true
		}
	}
	return false
}

// matchesPattern reports whether d is a raw (unadjusted) pattern date of the
// rule, including the interval phase anchored at StartDate.
func matchesPattern(r model.RecurrenceRule, d time.Time) bool {
	if err := validate(r); err != nil {
		return false
	}
	interval := r.Interval
	if interval < 1 {
		interval = 1
	}
	start := day(r.StartDate)

	switch r.Frequency {
	case model.Daily:
		days := daysBetween(start, d)
		return days >= 0 && days%interval == 0
	case model.Weekly:
		if d.Weekday() != r.DayOfWeek {
			return false
		}
		// Weeks are counted from the first on-pattern day at/after start.
		first := start.AddDate(0, 0, (int(r.DayOfWeek)-int(start.Weekday())+7)%7)
		days := daysBetween(first, d)
		return days >= 0 && (days/7)%interval == 0
	case model.Monthly:
		if !d.Equal(clampedDate(d.Year(), d.Month(), r.DayOfMonth)) {
			return false
		}
		months := monthsBetween(start, d)
		return months >= 0 && months%interval == 0
	default: // yearly
		if d.Month() != r.MonthOfYear {
			return false
		}
		if !d.Equal(clampedDate(d.Year(), d.Month(), r.DayOfMonth)) {
			return false
		}
		years := d.Year() - start.Year()
		return years >= 0 && years%interval == 0
	}
}

// adjust shifts a weekend date onto an adjacent weekday per the rule.
func adjust(d time.Time, w model.WeekendAdjustment) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		switch w {
		case model.WeekendPreviousFriday:
			return d.AddDate(0, 0, -1)
		case model.WeekendNextMonday:
			return d.AddDate(0, 0, 2)
		}
	case time.Sunday:
		switch w {
		case model.WeekendPreviousFriday:
			return d.AddDate(0, 0, -2)
		case model.WeekendNextMonday:
			return d.AddDate(0, 0, 1)
		}
	}
	return d
}

func isWeekend(d time.Time) bool {
	return d.Weekday() == time.Saturday || d.Weekday() == time.Sunday
}

// day normalizes to midnight UTC; the engine works at day granularity.
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// clampedDate builds a date clamping the day to the month's length.
// time.Month arithmetic in the caller may pass m > 12; time.Date normalizes.
func clampedDate(y int, m time.Month, dayOfMonth int) time.Time {
	// Normalize year/month first.
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	d := dayOfMonth
	if d > last {
		d = last
	}
	if d < 1 {
		d = 1
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(day(b).Sub(day(a)).Hours() / 24)
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
