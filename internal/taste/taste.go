package taste

import (
	"sort"

	"github.com/curiobot/curio/internal/models"
)

// Weight bounds. 50 is neutral; ratings nudge tags up or down inside
// [MinWeight, MaxWeight].
const (
	MinWeight     = 0
	MaxWeight     = 100
	DefaultWeight = 50
)

// RatingSkip is the rating value delivered when a user dismisses a
// recommendation without judging it. Callers must not feed it through
// ImpactOf: a skip carries no signal about the article's tags.
const RatingSkip = 0

// ImpactOf maps a 1-5 star rating to a weight delta: (rating-3)*2, so
// 3 stars is neutral and the extremes move a tag by ±4. The formula
// also accepts 0 but callers special-case skip before calling.
func ImpactOf(rating int) int {
	return (rating - 3) * 2
}

// ApplyImpact adds a delta to a weight and clamps the result into the
// valid range.
func ApplyImpact(weight, impact int) int {
	return clamp(weight+impact, MinWeight, MaxWeight)
}

// InitializeDefaults seeds a preference profile with every tag at the
// neutral weight.
func InitializeDefaults(tags []string) []models.TagWeight {
	profile := make([]models.TagWeight, 0, len(tags))
	for _, tag := range tags {
		profile = append(profile, models.TagWeight{
			Tag:         tag,
			Weight:      DefaultWeight,
			SampleCount: 1,
		})
	}
	return profile
}

// TopN returns at most n preferences ordered by descending weight.
// The sort is stable so equal weights keep their original order.
func TopN(profile []models.TagWeight, n int) []models.TagWeight {
	sorted := make([]models.TagWeight, len(profile))
	copy(sorted, profile)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// TagImpact pairs a tag with the weight delta a rating implies for it.
type TagImpact struct {
	Tag    string
	Impact int
}

// RatingImpacts expands a rating into per-tag updates: every tag on
// the rated article receives the full impact independently, never a
// share of it. A skip yields no updates.
func RatingImpacts(tags []string, rating int) []TagImpact {
	if rating == RatingSkip {
		return nil
	}

	impact := ImpactOf(rating)
	impacts := make([]TagImpact, 0, len(tags))
	for _, tag := range tags {
		impacts = append(impacts, TagImpact{Tag: tag, Impact: impact})
	}
	return impacts
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
