package core

import (
	"encoding/json"
	"testing"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2025-01-31", true},
		{"2025-02-28", true},
		{"2025-13-01", false},
		{"2025-1-1", false},
		{"31/01/2025", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || d.String() != tc.in {
				t.Fatalf("%q: got %s, err=%v", tc.in, d, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"2025-01", "2025-01-01", true},
		{"2025-01-01", "2025-01-01", true},
		{"2025-01-15", "", false}, // not first of month
		{"2025", "", false},
	}
	for _, tc := range cases {
		d, err := ParseMonth(tc.in)
		if tc.ok {
			if err != nil || d.String() != tc.out {
				t.Fatalf("%q: got %s, err=%v", tc.in, d, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestAddMonths(t *testing.T) {
	cases := []struct {
		start string
		n     int
		want  string
	}{
		{"2025-01-01", 1, "2025-02-01"},
		{"2025-12-01", 1, "2026-01-01"},
		{"2025-03-01", -1, "2025-02-01"},
		{"2025-01-01", 12, "2026-01-01"},
	}
	for _, tc := range cases {
		start, err := ParseDate(tc.start)
		if err != nil {
			t.Fatal(err)
		}
		if got := start.AddMonths(tc.n); got.String() != tc.want {
			t.Fatalf("%s + %d months = %s, want %s", tc.start, tc.n, got, tc.want)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"2025-01-15", 31},
		{"2025-02-10", 28},
		{"2024-02-10", 29}, // leap year
		{"2025-04-01", 30},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := d.DaysInMonth(); got != tc.want {
			t.Fatalf("DaysInMonth(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, 6, 30)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2025-06-30"` {
		t.Fatalf("marshal = %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d) {
		t.Fatalf("round trip = %s, want %s", back, d)
	}
}
