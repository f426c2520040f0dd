package source

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1,299.99", 1299.99},
		{"1299", 1299},
		{"€49.50", 49.50},
		{"Price: 25.00 USD", 25},
		{"free", 0},
		{"", 0},
		{"..", 0},
	}

	for _, tt := range tests {
		if got := ParsePrice(tt.in); got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1,234 reviews", 1234},
		{"(56)", 56},
		{"no reviews", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ParseCount(tt.in); got != tt.want {
			t.Errorf("ParseCount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"4.5 out of 5", 4.5},
		{"  4.8", 4.8},
		{"5", 5},
		{"unrated", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ParseRating(tt.in); got != tt.want {
			t.Errorf("ParseRating(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
