package stringslice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsFold(t *testing.T) {
	cases := []struct {
		name        string
		inputSearch string
		inputSlice  []string
		expected    bool
	}{
		{
			name:        "Should return false for an empty slice",
			inputSlice:  []string{},
			inputSearch: "foo",
			expected:    false,
		},
		{
			name:        "Should return false if the searchString is not present",
			inputSlice:  []string{"foo", "bar", "baz"},
			inputSearch: "hello",
			expected:    false,
		},
		{
			name:        "Should return true if the searchString is present",
			inputSlice:  []string{"foo", "bar", "baz"},
			inputSearch: "foo",
			expected:    true,
		},
		{
			name:        "Should ignore case",
			inputSlice:  []string{"app.example.com"},
			inputSearch: "App.Example.COM",
			expected:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			output := ContainsFold(tc.inputSlice, tc.inputSearch)
			assert.Equal(t, tc.expected, output)
		})
	}
}

func TestUnique(t *testing.T) {
	cases := []struct {
		name       string
		inputSlice []string
		expected   []string
	}{
		{
			name:       "Should return an empty slice for an empty input",
			inputSlice: []string{},
			expected:   []string{},
		},
		{
			name:       "Should keep the order of first appearance",
			inputSlice: []string{"b", "a", "b", "c", "a"},
			expected:   []string{"b", "a", "c"},
		},
		{
			name:       "Should drop empty strings",
			inputSlice: []string{"", "a", ""},
			expected:   []string{"a"},
		},
		{
			name:       "Should keep the first spelling of case-insensitive duplicates",
			inputSlice: []string{"A.example.com", "a.example.com"},
			expected:   []string{"A.example.com"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := append([]string{}, tc.inputSlice...)
			output := Unique(tc.inputSlice)
			assert.Equal(t, tc.expected, output)
			assert.Equal(t, input, tc.inputSlice)
		})
	}
}
