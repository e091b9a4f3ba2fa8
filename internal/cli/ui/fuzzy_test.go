package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"saturday", "sunday", 3},
		{"user", "user", 0},
		{"über", "uber", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"->"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, LevenshteinDistance(tt.a, tt.b))
			assert.Equal(t, tt.want, LevenshteinDistance(tt.b, tt.a))
		})
	}
}

func TestFindSimilar(t *testing.T) {
	classes := []string{"Alias", "Car", "User", "Vehicle"}

	assert.Equal(t, []string{"User", "Car"}, FindSimilar("usr", classes, nil))
	assert.Empty(t, FindSimilar("IndexWeights", classes, nil))
	assert.Equal(t, []string{"User"}, FindSimilar("usr", classes, &FuzzyMatchOptions{MaxDistance: 1}))
	assert.Empty(t, FindSimilar("usr", classes, &FuzzyMatchOptions{MaxDistance: 1, CaseSensitive: true}))
	assert.Equal(t, []string{"Car"}, FindSimilar("car", classes, &FuzzyMatchOptions{MaxSuggestions: 1}))
}
