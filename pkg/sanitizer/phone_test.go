package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "valid E.164 format",
			input: "+6281234567890",
			want:  "+6281234567890",
		},
		{
			name:  "national format with leading zero",
			input: "081234567890",
			want:  "+6281234567890",
		},
		{
			name:  "with spaces",
			input: "+62 812 3456 7890",
			want:  "+6281234567890",
		},
		{
			name:  "with dashes",
			input: "0812-3456-7890",
			want:  "+6281234567890",
		},
		{
			name:  "leading and trailing spaces",
			input: "  +6281234567890  ",
			want:  "+6281234567890",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "   ",
			want:  "",
		},
		{
			name:  "gibberish",
			input: "not a number",
			want:  "",
		},
		{
			name:  "too short",
			input: "0812",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "E.164 drops the plus",
			input: "+6281234567890",
			want:  "6281234567890",
		},
		{
			name:  "formatting characters removed",
			input: "(0812) 3456-7890",
			want:  "081234567890",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "no digits at all",
			input: "abc-def",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DigitsOnly(tt.input)
			if got != tt.want {
				t.Errorf("DigitsOnly(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
