package taste

import (
	"testing"

	"github.com/curiobot/curio/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpactOf(t *testing.T) {
	expected := map[int]int{0: -6, 1: -4, 2: -2, 3: 0, 4: 2, 5: 4}
	for rating, impact := range expected {
		assert.Equal(t, impact, ImpactOf(rating), "rating %d", rating)
	}

	prev := ImpactOf(0)
	for r := 1; r <= 5; r++ {
		cur := ImpactOf(r)
		assert.GreaterOrEqual(t, cur, prev, "not monotonic at rating %d", r)
		prev = cur
	}
}

func TestApplyImpact_Saturates(t *testing.T) {
	assert.Equal(t, 100, ApplyImpact(98, 4))
	assert.Equal(t, 0, ApplyImpact(2, -6))
	assert.Equal(t, 54, ApplyImpact(50, 4))
	assert.Equal(t, 46, ApplyImpact(50, -4))

	for w := 0; w <= 100; w++ {
		for _, impact := range []int{-6, -4, -2, 0, 2, 4} {
			got := ApplyImpact(w, impact)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		}
	}
}

func TestRatingImpacts_EveryTagGetsFullImpact(t *testing.T) {
	impacts := RatingImpacts([]string{"Economics", "History"}, 5)
	require.Len(t, impacts, 2)

	// A rating of 5 moves every tag on the article by +4, not a share
	// of it: two tags at 50 both land on 54.
	for i, tag := range []string{"Economics", "History"} {
		assert.Equal(t, tag, impacts[i].Tag)
		assert.Equal(t, 4, impacts[i].Impact)
		assert.Equal(t, 54, ApplyImpact(50, impacts[i].Impact))
	}
}

func TestRatingImpacts_SkipYieldsNothing(t *testing.T) {
	assert.Empty(t, RatingImpacts([]string{"Economics", "History"}, RatingSkip))
}

func TestInitializeDefaults(t *testing.T) {
	profile := InitializeDefaults([]string{"Philosophy", "Economics", "History"})
	require.Len(t, profile, 3)
	for _, tw := range profile {
		assert.Equal(t, DefaultWeight, tw.Weight)
		assert.Equal(t, 1, tw.SampleCount)
	}
}

func TestTopN(t *testing.T) {
	profile := []models.TagWeight{
		{Tag: "Economics", Weight: 40},
		{Tag: "Philosophy", Weight: 90},
		{Tag: "History", Weight: 40},
		{Tag: "Science", Weight: 70},
	}

	top := TopN(profile, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "Philosophy", top[0].Tag)
	assert.Equal(t, "Science", top[1].Tag)
	// Stable: Economics came before History in the input.
	assert.Equal(t, "Economics", top[2].Tag)

	// n larger than the profile returns everything.
	assert.Len(t, TopN(profile, 10), 4)

	// The input slice is not reordered.
	assert.Equal(t, "Economics", profile[0].Tag)
}
