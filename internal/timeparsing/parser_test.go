package timeparsing

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func TestParseCompactDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"+6h", testNow.Add(6 * time.Hour)},
		{"-1d", testNow.AddDate(0, 0, -1)},
		{"+2w", testNow.AddDate(0, 0, 14)},
		{"3m", testNow.AddDate(0, 3, 0)},
		{"-1y", testNow.AddDate(-1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, testNow)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseCompactDurationRejects(t *testing.T) {
	for _, input := range []string{"", "1", "h", "1x", "yesterday", "1.5d"} {
		if _, err := ParseCompactDuration(input, testNow); err == nil {
			t.Errorf("ParseCompactDuration(%q) should fail", input)
		}
		if IsCompactDuration(input) {
			t.Errorf("IsCompactDuration(%q) = true", input)
		}
	}
}

func TestParseAbsolute(t *testing.T) {
	got, err := ParseAbsolute("2026-08-01")
	if err != nil {
		t.Fatal(err)
	}
	if got.Year() != 2026 || got.Month() != time.August || got.Day() != 1 {
		t.Errorf("got %v", got)
	}

	got, err = ParseAbsolute("2026-08-01T09:30:00Z")
	if err != nil {
		t.Fatal(err)
	}
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Errorf("got %v", got)
	}
}

func TestParseTimeExpressionLayers(t *testing.T) {
	// Layer 1: compact duration.
	got, err := ParseTimeExpression("-2d", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if want := testNow.AddDate(0, 0, -2); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Layer 2: absolute.
	got, err = ParseTimeExpression("2026-08-15", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if got.Day() != 15 {
		t.Errorf("got %v", got)
	}

	// Layer 3: natural language.
	got, err = ParseTimeExpression("yesterday", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if got.Day() != 29 {
		t.Errorf("yesterday = %v, want day 29", got)
	}

	if _, err := ParseTimeExpression("not a time at all xyz", testNow); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestParseNaturalLanguageRejectsSurroundingText(t *testing.T) {
	if _, err := ParseNaturalLanguage("delete everything since yesterday", testNow); err == nil {
		t.Error("partial matches should be rejected")
	}
}
