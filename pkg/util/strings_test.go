package util

import "testing"

func TestSplitCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"web", 1},
		{"web,app", 2},
		{"web, app, , db", 3},
	}

	for _, tt := range tests {
		got := SplitCommaSeparated(tt.input)
		if len(got) != tt.want {
			t.Errorf("SplitCommaSeparated(%q) = %v (len %d), want len %d", tt.input, got, len(got), tt.want)
		}
	}
}

func TestIDFromName(t *testing.T) {
	if got := IDFromName("web vm 01"); got != "web_vm_01" {
		t.Errorf("IDFromName = %q", got)
	}
	if got := IDFromName("plain"); got != "plain" {
		t.Errorf("IDFromName = %q", got)
	}
}

func TestSplitQualified(t *testing.T) {
	tests := []struct {
		in, qual, name string
	}{
		{"default:web", "default", "web"},
		{"web", "", "web"},
		{":web", "", "web"},
		{"a:b:c", "a", "b:c"},
	}
	for _, tt := range tests {
		q, n := SplitQualified(tt.in)
		if q != tt.qual || n != tt.name {
			t.Errorf("SplitQualified(%q) = (%q, %q), want (%q, %q)", tt.in, q, n, tt.qual, tt.name)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefgh", 6); got != "abc..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("abc", 6); got != "abc" {
		t.Errorf("Truncate = %q", got)
	}
}
