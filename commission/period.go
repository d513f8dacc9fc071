/*
period.go - Evaluation windows for the batch engines

PURPOSE:
  Every engine evaluates sales over an explicit, inclusive time window in a
  designated timezone. No function here reads the system clock; callers pass
  the evaluation date and location.

WINDOW KINDS:
  Closing windows:  two fixed wall-clock bands per local day
                    closing 1 = 06:00:00 - 11:59:59
                    closing 2 = 12:00:00 - 17:59:59
  Day window:       00:00:00 - 23:59:59 (daily-cap accounting)
  Month window:     1st 00:00:00 - last day 23:59:59 (monthly salary period)
  Week window:      Monday 00:00:00 - Sunday 23:59:59 (weekly salary period)
*/
package commission

import "time"

// Window is an inclusive [From, To] evaluation interval.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the window, inclusive both ends.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

func (w Window) String() string {
	return "[" + w.From.Format(time.RFC3339) + ", " + w.To.Format(time.RFC3339) + "]"
}

// =============================================================================
// CLOSING WINDOWS
// =============================================================================

// ClosingWindow returns the fixed wall-clock band for the given closing
// number on date's local day in loc.
func ClosingWindow(date time.Time, closingNo int, loc *time.Location) (Window, error) {
	d := date.In(loc)
	switch closingNo {
	case 1:
		return Window{
			From: time.Date(d.Year(), d.Month(), d.Day(), 6, 0, 0, 0, loc),
			To:   time.Date(d.Year(), d.Month(), d.Day(), 11, 59, 59, 0, loc),
		}, nil
	case 2:
		return Window{
			From: time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc),
			To:   time.Date(d.Year(), d.Month(), d.Day(), 17, 59, 59, 0, loc),
		}, nil
	default:
		return Window{}, ErrInvalidClosing
	}
}

// DayWindow returns the full local calendar day containing date.
func DayWindow(date time.Time, loc *time.Location) Window {
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return Window{From: start, To: start.AddDate(0, 0, 1).Add(-time.Second)}
}

// LocalDate formats date's local day in loc as YYYY-MM-DD. This is the
// closing_date key of binary payout rows and the period marker format.
func LocalDate(date time.Time, loc *time.Location) string {
	return date.In(loc).Format("2006-01-02")
}

// =============================================================================
// SALARY PERIODS
// =============================================================================

// MonthWindow returns the calendar month containing date in loc.
func MonthWindow(date time.Time, loc *time.Location) Window {
	d := date.In(loc)
	start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, loc)
	return Window{From: start, To: start.AddDate(0, 1, 0).Add(-time.Second)}
}

// WeekWindow returns the Monday-start calendar week containing date in loc.
func WeekWindow(date time.Time, loc *time.Location) Window {
	d := date.In(loc)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -offset)
	return Window{From: start, To: start.AddDate(0, 0, 7).Add(-time.Second)}
}

// PeriodWindow returns the salary period containing date for the mode.
func PeriodWindow(date time.Time, mode PeriodMode, loc *time.Location) (Window, error) {
	switch mode {
	case ModeMonthly:
		return MonthWindow(date, loc), nil
	case ModeWeekly:
		return WeekWindow(date, loc), nil
	default:
		return Window{}, ErrInvalidMode
	}
}

// PeriodMarker renders the stable identifier of a salary period: YYYY-MM
// for monthly, the Monday's YYYY-MM-DD for weekly. Qualification rows are
// keyed by (sponsor, marker).
func PeriodMarker(w Window, mode PeriodMode, loc *time.Location) string {
	if mode == ModeWeekly {
		return LocalDate(w.From, loc)
	}
	return w.From.In(loc).Format("2006-01")
}

// NextBoundaries returns the starts of the n periods following w, in order.
// Installment due dates are the 1st, 2nd and 3rd subsequent boundaries.
func NextBoundaries(w Window, mode PeriodMode, n int) []time.Time {
	boundaries := make([]time.Time, 0, n)
	start := w.From
	for i := 1; i <= n; i++ {
		switch mode {
		case ModeWeekly:
			boundaries = append(boundaries, start.AddDate(0, 0, 7*i))
		default:
			boundaries = append(boundaries, start.AddDate(0, i, 0))
		}
	}
	return boundaries
}
