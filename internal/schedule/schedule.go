// Package schedule parses recurrence expressions and generates occurrence
// dates for recurring rules.
//
// The dialect is an RRULE subset: FREQ=DAILY|WEEKLY|MONTHLY|YEARLY with
// optional INTERVAL=n, BYMONTHDAY=d (monthly only) and UNTIL=YYYYMMDD
// (inclusive). Occurrence generation is a pure function of the previous
// occurrence, so a sequence can be restarted from any date.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"duit/internal/core"
)

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

type (
	Frequency string

	// Schedule is a parsed recurrence expression.
	Schedule struct {
		Freq       Frequency
		Interval   int
		ByMonthDay int // 0 when unset; monthly only
		Until      core.Date
	}
)

// Parse parses a recurrence expression. Unknown keys and malformed values are
// validation failures; re-parsing the String form round-trips.
func Parse(expr string) (Schedule, error) {
	s := Schedule{Interval: 1}
	if strings.TrimSpace(expr) == "" {
		return s, fmt.Errorf("%w: empty schedule", core.ErrValidation)
	}
	for _, part := range strings.Split(expr, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return s, fmt.Errorf("%w: malformed schedule component %q", core.ErrValidation, part)
		}
		switch strings.ToUpper(key) {
		case "FREQ":
			switch Frequency(strings.ToUpper(val)) {
			case Daily, Weekly, Monthly, Yearly:
				s.Freq = Frequency(strings.ToUpper(val))
			default:
				return s, fmt.Errorf("%w: unsupported frequency %q", core.ErrValidation, val)
			}
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return s, fmt.Errorf("%w: interval must be a positive integer", core.ErrValidation)
			}
			s.Interval = n
		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return s, fmt.Errorf("%w: bymonthday must be between 1 and 31", core.ErrValidation)
			}
			s.ByMonthDay = n
		case "UNTIL":
			t, err := time.Parse("20060102", val)
			if err != nil {
				return s, fmt.Errorf("%w: until must be a YYYYMMDD date", core.ErrValidation)
			}
			s.Until = core.DateOf(t)
		default:
			return s, fmt.Errorf("%w: unsupported schedule component %q", core.ErrValidation, key)
		}
	}
	if s.Freq == "" {
		return s, fmt.Errorf("%w: schedule is missing FREQ", core.ErrValidation)
	}
	if s.ByMonthDay != 0 && s.Freq != Monthly {
		return s, fmt.Errorf("%w: bymonthday is only valid with FREQ=MONTHLY", core.ErrValidation)
	}
	return s, nil
}

// Anchored pins a monthly schedule without an explicit BYMONTHDAY to the
// start date's day of month. Without the anchor the target day is only
// carried by the previous occurrence, so one short month would pull every
// later occurrence off the day (Jan 31, Feb 28, then Mar 28 instead of
// Mar 31). Other frequencies are returned unchanged.
func (s Schedule) Anchored(start core.Date) Schedule {
	if s.Freq == Monthly && s.ByMonthDay == 0 {
		s.ByMonthDay = start.Day()
	}
	return s
}

// String renders the schedule back into its expression form.
func (s Schedule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FREQ=%s", s.Freq)
	if s.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", s.Interval)
	}
	if s.ByMonthDay != 0 {
		fmt.Fprintf(&b, ";BYMONTHDAY=%d", s.ByMonthDay)
	}
	if !s.Until.IsZero() {
		fmt.Fprintf(&b, ";UNTIL=%s", s.Until.Format("20060102"))
	}
	return b.String()
}

// Next returns the earliest occurrence strictly after the given date, or
// ok=false when the schedule has ended. Target days beyond a month's end are
// clamped to the last day of that month.
func (s Schedule) Next(after core.Date) (core.Date, bool) {
	var next core.Date
	switch s.Freq {
	case Daily:
		next = after.AddDays(s.Interval)
	case Weekly:
		next = after.AddDays(7 * s.Interval)
	case Monthly:
		next = s.nextMonthly(after)
	case Yearly:
		y := core.NewDate(after.Year()+s.Interval, int(after.Month()), 1)
		next = clampDay(y, after.Day())
	default:
		return core.Date{}, false
	}
	if !s.Until.IsZero() && next.After(s.Until.Time) {
		return core.Date{}, false
	}
	return next, true
}

func (s Schedule) nextMonthly(after core.Date) core.Date {
	day := after.Day()
	if s.ByMonthDay != 0 {
		day = s.ByMonthDay
		// The target day may still be ahead inside the current month.
		inMonth := clampDay(after.FirstOfMonth(), day)
		if inMonth.After(after.Time) {
			return inMonth
		}
	}
	return clampDay(after.FirstOfMonth().AddMonths(s.Interval), day)
}

func clampDay(firstOfMonth core.Date, day int) core.Date {
	if max := firstOfMonth.DaysInMonth(); day > max {
		day = max
	}
	return core.NewDate(firstOfMonth.Year(), int(firstOfMonth.Month()), day)
}
