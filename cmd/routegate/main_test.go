package main

import "testing"

func TestShortID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"uuid abbreviated", "5cc49a1a-7d86-44d1-9f3c-0a9e1d2b3c4d", "5cc49a1a"},
		{"short id unchanged", "req-1", "req-1"},
		{"exact length unchanged", "12345678", "12345678"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shortID(tt.id); got != tt.want {
				t.Fatalf("shortID(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}
