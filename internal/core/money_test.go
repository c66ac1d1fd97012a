package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
	}{
		{"0.01", 1},
		{"1", 100},
		{"12.34", 1234},
		{"99999.99", 9999999},
	}
	for _, tc := range cases {
		d, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got := Cents(d); got != tc.cents {
			t.Fatalf("Cents(%q) = %d, want %d", tc.in, got, tc.cents)
		}
		if back := FromCents(tc.cents); !back.Equal(d) {
			t.Fatalf("FromCents(%d) = %s, want %s", tc.cents, back, d)
		}
	}
}

func TestValidAmount(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0.01", true},
		{"10", true},
		{"10.50", true},
		{"0", false},
		{"-3", false},
		{"1.005", false}, // three decimals
	}
	for _, tc := range cases {
		d, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if got := ValidAmount(d); got != tc.want {
			t.Fatalf("ValidAmount(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSignedCents(t *testing.T) {
	cases := []struct {
		typ  TransactionType
		want int64
	}{
		{TransactionIncome, 500},
		{TransactionTransferIn, 500},
		{TransactionExpense, -500},
		{TransactionTransferOut, -500},
	}
	for _, tc := range cases {
		if got := SignedCents(tc.typ, 500); got != tc.want {
			t.Fatalf("SignedCents(%s, 500) = %d, want %d", tc.typ, got, tc.want)
		}
	}
}
