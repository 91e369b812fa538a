package util

import "testing"

func TestParseLeadingFloat(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "plain", input: "12.50", want: 12.5},
		{name: "padded", input: "  7  ", want: 7},
		{name: "trailing text", input: "12.50 USD", want: 12.5},
		{name: "leading dot", input: ".5", want: 0.5},
		{name: "thousands stops at comma", input: "1,234.00", want: 1},
		{name: "zero", input: "0.00", want: 0},
		{name: "negative", input: "-3", want: -3},
		{name: "text", input: "free", want: 0},
		{name: "empty", input: "", want: 0},
		{name: "currency not stripped", input: "$4", want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseLeadingFloat(tc.input); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseLeadingInt(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"3", 3},
		{" 10 ", 10},
		{"2.5", 2},
		{"3 pcs", 3},
		{"0", 0},
		{"x3", 0},
		{"", 0},
		{"99999999999999999999999", 0},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseLeadingInt(tc.input); got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestStripThousands(t *testing.T) {
	if got := StripThousands("1,234,567.89"); got != "1234567.89" {
		t.Fatalf("got %q", got)
	}
}
