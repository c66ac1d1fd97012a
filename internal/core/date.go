package core

import (
	"encoding/json"
	"time"
)

// Date is a civil date (no time-of-day component), normalized to UTC midnight.
// Transaction occurrence dates, budget months, rule run dates and goal
// deadlines are all civil dates; wall-clock timestamps stay time.Time.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its civil date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// Today returns the current civil date.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD literal.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrValidation
	}
	return Date{Time: t}, nil
}

// ParseMonth parses a month literal in either YYYY-MM or YYYY-MM-01 form and
// returns the first day of that month.
func ParseMonth(s string) (Date, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return Date{Time: t}, nil
	}
	d, err := ParseDate(s)
	if err != nil || d.Day() != 1 {
		return Date{}, ErrValidation
	}
	return d, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

// AddMonths moves a first-of-month date by n months.
func (d Date) AddMonths(n int) Date {
	return NewDate(d.Year(), int(d.Month())+n, d.Day())
}

// AddDays returns the date n days after d.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), int(d.Month()), d.Day()+n)
}

// DaysInMonth returns the number of days in d's month.
func (d Date) DaysInMonth() int {
	return NewDate(d.Year(), int(d.Month())+1, 0).Day()
}

// SameMonth reports whether two dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

// After and Before are inherited from time.Time; Equal compares civil dates.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
