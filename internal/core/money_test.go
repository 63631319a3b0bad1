package core

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		nan bool
	}{
		{"1", 1, false},
		{"12.50", 12.5, false},
		{" 2.50 ", 2.5, false},
		{"", 0, false},
		{"   ", 0, false},
		{"-3", -3, false},
		{"+4", 4, false},
		{".5", 0.5, false},
		{"5.", 5, false},
		{"1e3", 1000, false},
		{"0x10", 0, true},
		{"0b101", 0, true},
		{"0o17", 0, true},
		{"abc", 0, true},
		{"12abc", 0, true},
		{"1,5", 0, true},
		{"1.2.3", 0, true},
		{"0x", 0, true},
		{"-0x10", 0, true},
		{"inf", 0, true},
		{"NaN", 0, true},
		{"1_000", 0, true},
	}
	for _, tc := range cases {
		got := ParseNumber(tc.in)
		if tc.nan {
			if !got.IsNaN() {
				t.Fatalf("%q expected NaN, got %v", tc.in, float64(got))
			}
			continue
		}
		if float64(got) != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, float64(got))
		}
	}
}

func TestParseNumberInfinity(t *testing.T) {
	if !math.IsInf(float64(ParseNumber("Infinity")), 1) {
		t.Fatalf("expected +Inf")
	}
	if !math.IsInf(float64(ParseNumber("-Infinity")), -1) {
		t.Fatalf("expected -Inf")
	}
	if !math.IsInf(float64(ParseNumber("1e400")), 1) {
		t.Fatalf("expected overflow to +Inf")
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in  Amount
		out string
	}{
		{0, "0.00"},
		{1, "1.00"},
		{12.5, "12.50"},
		{0.1 + 0.2, "0.30"},
		{1234.567, "1234.57"},
		{-7.25, "-7.25"},
		{1.005, "1.00"},
		{2.675, "2.67"},
		{-2.675, "-2.67"},
		{0.125, "0.13"},
		{-0.125, "-0.13"},
		{-0.001, "-0.00"},
		{1e21, "1e+21"},
		{1.5e21, "1.5e+21"},
		{1e20, "100000000000000000000.00"},
		{NaN, "NaN"},
		{Amount(math.Inf(1)), "Infinity"},
		{Amount(math.Inf(-1)), "-Infinity"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.out {
			t.Fatalf("FormatAmount(%v) = %q, want %q", float64(tc.in), got, tc.out)
		}
	}
}

func TestAmountJSON(t *testing.T) {
	b, err := json.Marshal(Balance{CurrentBalance: NaN})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"currentBalance":null}` {
		t.Fatalf("NaN should encode as null, got %s", b)
	}

	var e Expense
	if err := json.Unmarshal([]byte(`{"id":3,"category":"Food","amount":null,"description":"x"}`), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Amount != 0 {
		t.Fatalf("null amount should decode as 0, got %v", float64(e.Amount))
	}
	if e.ID != "3" {
		t.Fatalf("numeric id should decode as \"3\", got %q", e.ID)
	}
}
