package model

import "time"

// RecurringInterval is the repeat period of a recurring bill.
type RecurringInterval string

const (
	IntervalMonthly      RecurringInterval = "monthly"
	IntervalEvery3Months RecurringInterval = "every_3_months"
	IntervalEvery6Months RecurringInterval = "every_6_months"
	IntervalYearly       RecurringInterval = "yearly"
	IntervalEvery2Years  RecurringInterval = "every_2_years"
	IntervalCustom       RecurringInterval = "custom"
)

// Valid reports whether i is a known interval.
func (i RecurringInterval) Valid() bool {
	switch i {
	case IntervalMonthly, IntervalEvery3Months, IntervalEvery6Months,
		IntervalYearly, IntervalEvery2Years, IntervalCustom:
		return true
	}
	return false
}

// Months returns the step in months. Custom and unknown intervals have no
// step and report false.
func (i RecurringInterval) Months() (int, bool) {
	switch i {
	case IntervalMonthly:
		return 1, true
	case IntervalEvery3Months:
		return 3, true
	case IntervalEvery6Months:
		return 6, true
	case IntervalYearly:
		return 12, true
	case IntervalEvery2Years:
		return 24, true
	}
	return 0, false
}

// addMonths moves t forward n months, clamping the day to the target month's
// last day (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// Occurrences returns the due dates of b falling in [from, to). Non-recurring
// bills and bills with a custom interval yield at most their anchor date.
func Occurrences(b Bill, from, to time.Time) []time.Time {
	if b.DueDate.IsZero() || !to.After(from) {
		return nil
	}
	inRange := func(t time.Time) bool { return !t.Before(from) && t.Before(to) }

	step, ok := b.RecurringInterval.Months()
	if !b.IsRecurring || !ok {
		if inRange(b.DueDate) {
			return []time.Time{b.DueDate}
		}
		return nil
	}

	var out []time.Time
	for n := 0; ; n += step {
		t := addMonths(b.DueDate, n)
		if !t.Before(to) {
			break
		}
		if inRange(t) {
			out = append(out, t)
		}
	}
	return out
}
