package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Elite MMA Academy", "elite-mma-academy"},
		{"collapses runs", "Test   Gym!!!", "test-gym"},
		{"trims edge hyphens", "  --Iron Temple--  ", "iron-temple"},
		{"digits kept", "Gym 24/7", "gym-24-7"},
		{"non ascii dropped", "Café Fight Club", "caf-fight-club"},
		{"already clean", "downtown-dojo", "downtown-dojo"},
		{"only separators", "!!!", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestUniqueSlugSuffix(t *testing.T) {
	got := UniqueSlugSuffix("test-gym")
	assert.True(t, strings.HasPrefix(got, "test-gym-"))
	assert.Greater(t, len(got), len("test-gym-"))
}
