package phone

import "testing"

func TestNormalizeCanonicalForms(t *testing.T) {
	const want = "+8801712345678"

	inputs := []string{
		"01712345678",
		"+8801712345678",
		"8801712345678",
		"880 1712-345678",
		"1712345678",
	}

	for _, input := range inputs {
		if got := Normalize(input); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"01712345678",
		"8801712345678",
		"+8801712345678",
		"1712345678",
		"+44 20 7946 0958",
		"12345",
		"",
		"abc",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}

func TestNormalizeEdgeCases(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"   ", ""},
		{"abc-def", ""},
		{"+44 20 7946 0958", "+442079460958"},
		// 13+ digits starting 8801 truncate to the first 13.
		{"88017123456789", "+8801712345678"},
		// 11 digits not starting with 0 fall through to the generic rule.
		{"17123456789", "+17123456789"},
		// 10 digits not starting with 1 fall through too.
		{"0712345678", "+0712345678"},
	}

	for _, tc := range cases {
		if got := Normalize(tc.input); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestIsPlausible(t *testing.T) {
	if !IsPlausible("01712345678") {
		t.Error("expected a local BD mobile number to be plausible")
	}
	if IsPlausible("") {
		t.Error("expected empty input to be implausible")
	}
	if IsPlausible("not a number") {
		t.Error("expected garbage input to be implausible")
	}
}
