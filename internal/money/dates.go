package money

import "time"

// DateLayout is the calendar date format used in forms, CSV and cache keys.
const DateLayout = "2006-01-02"

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the whole calendar days from `from` to `to`.
// Each argument is read as the calendar date it carries in its own location,
// so a DATE column scanned as UTC midnight keeps its day whatever zone
// "today" is in. The hour of day and DST shifts do not matter.
func DaysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
