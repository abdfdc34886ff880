package secrets

import "testing"

func TestMask(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{name: "empty string", secret: "", expected: ""},
		{name: "short secret", secret: "abc", expected: "***"},
		{name: "exact 8 chars", secret: "12345678", expected: "***"},
		{name: "long secret", secret: "verylongsecretkey123", expected: "very..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mask(tt.secret); got != tt.expected {
				t.Errorf("Mask(%q) = %q, want %q", tt.secret, got, tt.expected)
			}
		})
	}
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "empty",
			url:      "",
			expected: "",
		},
		{
			name:     "postgres with password",
			url:      "postgres://cabinet:s3cret@db:5432/cache?sslmode=disable",
			expected: "postgres://cabinet:xxxxx@db:5432/cache?sslmode=disable",
		},
		{
			name:     "user without password",
			url:      "postgres://cabinet@db:5432/cache",
			expected: "postgres://cabinet@db:5432/cache",
		},
		{
			name:     "api key in query",
			url:      "https://api.example.com/patients?api_key=abc123&limit=50",
			expected: "https://api.example.com/patients?api_key=xxxxx&limit=50",
		},
		{
			name:     "plain source url",
			url:      "https://api.example.com/rdv?page={page}",
			expected: "https://api.example.com/rdv?page={page}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskURL(tt.url); got != tt.expected {
				t.Errorf("MaskURL(%q) = %q, want %q", tt.url, got, tt.expected)
			}
		})
	}
}
