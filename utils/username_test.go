package utils

import (
	"testing"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Bare handle", input: "Example_User", expected: "Example_User"},
		{name: "At handle keeps case", input: "@Example_User", expected: "Example_User"},
		{name: "Surrounding whitespace", input: "  @golang \n", expected: "golang"},
		{name: "x.com URL", input: "https://x.com/golang", expected: "golang"},
		{name: "twitter.com URL with status", input: "https://twitter.com/golang/status/123456", expected: "golang"},
		{name: "Mobile URL with query", input: "https://mobile.twitter.com/golang?s=20", expected: "golang"},
		{name: "Schemeless URL", input: "x.com/Example_User", expected: "Example_User"},
		{name: "www host with fragment", input: "http://www.x.com/golang#top", expected: "golang"},
		{name: "Other host", input: "https://example.com/golang", expected: ""},
		{name: "Invalid characters", input: "@not-a-handle", expected: ""},
		{name: "Too long", input: "abcdefghijklmnop", expected: ""},
		{name: "Empty", input: "", expected: ""},
		{name: "Only at sign", input: "@", expected: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := NormalizeUsername(tc.input)
			if result != tc.expected {
				t.Errorf("NormalizeUsername(%q) = %q; want %q", tc.input, result, tc.expected)
			}
		})
	}
}
