package domain

import "testing"

func TestFormatLabel(t *testing.T) {
	if got := FormatLabel(1); got != "v1" {
		t.Fatalf("expected v1, got %s", got)
	}
	if got := FormatLabel(42); got != "v42" {
		t.Fatalf("expected v42, got %s", got)
	}
}

func TestParseLabel(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"v1", 1},
		{"v42", 42},
		{"v0", 0},
		{"", 0},
		{"1.0.0", 0},
		{"version2", 0},
		{"v-3", 0},
		{"v1.5", 0},
	}
	for _, c := range cases {
		if got := ParseLabel(c.in); got != c.want {
			t.Fatalf("ParseLabel(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
