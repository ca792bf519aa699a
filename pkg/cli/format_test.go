package cli

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestDotPad(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "normal case",
			input:    "realization",
			width:    30,
			expected: "realization " + strings.Repeat(".", 18),
		},
		{
			name:     "short name",
			input:    "ok",
			width:    10,
			expected: "ok " + strings.Repeat(".", 7),
		},
		{
			name:     "name equals width minus one",
			input:    "abcde",
			width:    6,
			expected: "abcde",
		},
		{
			name:     "name equals width",
			input:    "abcdef",
			width:    6,
			expected: "abcdef",
		},
		{
			name:     "name longer than width",
			input:    "very-long-name",
			width:    5,
			expected: "very-long-name",
		},
		{
			name:     "empty string",
			input:    "",
			width:    10,
			expected: " " + strings.Repeat(".", 9),
		},
		{
			name:     "width of 1",
			input:    "",
			width:    1,
			expected: "",
		},
		{
			name:     "width of 2 with empty string",
			input:    "",
			width:    2,
			expected: " .",
		},
		{
			name:     "single char name width 5",
			input:    "x",
			width:    5,
			expected: "x " + strings.Repeat(".", 3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DotPad(tt.input, tt.width)
			if got != tt.expected {
				t.Errorf("DotPad(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.expected)
			}
		})
	}
}

func TestDotPad_ResultLength(t *testing.T) {
	result := DotPad("test", 20)
	if len(result) != 20 {
		t.Errorf("DotPad(%q, 20) len = %d, want 20", "test", len(result))
	}
}

// withColor forces escape sequences on for the duration of a test.
func withColor(t *testing.T) {
	t.Helper()
	saved := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = saved })
}

func TestColorFunctions(t *testing.T) {
	withColor(t)
	tests := []struct {
		name   string
		fn     func(string) string
		prefix string
		reset  string
	}{
		{"Green", Green, "\033[32m", "\033[0m"},
		{"Yellow", Yellow, "\033[33m", "\033[0m"},
		{"Red", Red, "\033[31m", "\033[0m"},
		// Intensity attributes end with their own reset, not the full reset.
		{"Bold", Bold, "\033[1m", "\033[22m"},
		{"Dim", Dim, "\033[2m", "\033[22m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("hello")
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("%s should start with %q", tt.name, tt.prefix)
			}
			if !strings.Contains(got, "hello") {
				t.Errorf("%s should contain the input string", tt.name)
			}
			if !strings.HasSuffix(got, tt.reset) {
				t.Errorf("%s = %q, should end with reset code %q", tt.name, got, tt.reset)
			}
		})
	}
}

func TestColorDisabled(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = saved }()

	if got := Green("hello"); got != "hello" {
		t.Errorf("Green with NO_COLOR = %q, want plain text", got)
	}
}

func TestStatus(t *testing.T) {
	withColor(t)
	tests := []struct {
		state  string
		prefix string
	}{
		{"SUCCESS", "\033[32m"},
		{"stable", "\033[32m"},
		{"UP", "\033[32m"},
		{"IN_PROGRESS", "\033[33m"},
		{"DEGRADED", "\033[33m"},
		{"ERROR", "\033[31m"},
		{"DOWN", "\033[31m"},
	}
	for _, tt := range tests {
		got := Status(tt.state)
		if !strings.HasPrefix(got, tt.prefix) || !strings.Contains(got, tt.state) {
			t.Errorf("Status(%q) = %q, want prefix %q", tt.state, got, tt.prefix)
		}
	}
}
