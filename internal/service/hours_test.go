package service

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-03", month(2025, 3)},
		{"2025-03-17", month(2025, 3)},
		{"2024-12-01", month(2024, 12)},
	}
	for _, tt := range tests {
		got, err := parseMonth(tt.input)
		if err != nil {
			t.Errorf("parseMonth(%q): %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseMonth(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseMonthRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "March 2025", "2025/03", "2025-13"} {
		if _, err := parseMonth(input); err == nil {
			t.Errorf("parseMonth(%q) should fail", input)
		}
	}
}
