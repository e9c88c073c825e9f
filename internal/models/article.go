package models

import "time"

// TagWeight is a user's interest strength in a single tag. Weights live
// on a 0-100 scale where 50 is neutral.
type TagWeight struct {
	Tag         string    `json:"tag"`
	Weight      int       `json:"weight"`
	SampleCount int       `json:"sample_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ArticleIdea is a recommendation produced by the ideation stage,
// before any URL has been located for it.
type ArticleIdea struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Publication string   `json:"publication,omitempty"`
	Description string   `json:"description"`
	Reason      string   `json:"reason"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
}

// Idea categories requested from the ideation prompt.
const (
	CategoryClassic = "classic"
	CategoryGem     = "gem"
)

// ResolvedArticle is an idea augmented with a located URL. When no
// direct URL could be confirmed, URL holds a synthetic search-engine
// query link and IsSearchFallback is set.
type ResolvedArticle struct {
	ArticleIdea
	URL              string `json:"url"`
	Source           string `json:"source,omitempty"`
	IsSearchFallback bool   `json:"is_search_fallback"`
}

// Confidence tiers for link verification, distinct from the boolean
// valid/invalid verdict.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceFailed = "failed"
)

// VerificationResult is the outcome of a single link check. Produced
// fresh per check and never persisted beyond the cycle, except as the
// verified flag on the stored recommendation.
type VerificationResult struct {
	IsValid          bool   `json:"is_valid"`
	Confidence       string `json:"confidence"`
	Status           int    `json:"status,omitempty"`
	IsPaywall        bool   `json:"is_paywall"`
	IsSearchFallback bool   `json:"is_search_fallback"`
	Reason           string `json:"reason,omitempty"`
	Title            string `json:"title,omitempty"`
}

// Recommendation is a persisted article, deduplicated by URL.
type Recommendation struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Author           string    `json:"author"`
	Publication      string    `json:"publication,omitempty"`
	URL              string    `json:"url"`
	Description      string    `json:"description"`
	Reason           string    `json:"reason"`
	Tags             []string  `json:"tags"`
	Category         string    `json:"category"`
	Verified         bool      `json:"verified"`
	IsPaywall        bool      `json:"is_paywall"`
	IsSearchFallback bool      `json:"is_search_fallback"`
	CreatedAt        time.Time `json:"created_at"`
}

// CuratedArticle pairs a resolved article with its verification.
type CuratedArticle struct {
	ResolvedArticle
	Verification VerificationResult `json:"verification"`
}

// CuratedSet is the assembled output of one curation cycle: a single
// primary pick plus ranked alternates.
type CuratedSet struct {
	Primary      CuratedArticle   `json:"primary"`
	Alternatives []CuratedArticle `json:"alternatives"`
}

// StatusBadge returns the user-facing delivery status for an article.
// Uncertainty is surfaced, never hidden.
func (a CuratedArticle) StatusBadge() string {
	switch {
	case a.IsSearchFallback:
		return "search result"
	case a.Verification.IsPaywall:
		return "paywall likely"
	case a.Verification.IsValid && a.Verification.Confidence == ConfidenceHigh:
		return "verified"
	default:
		return "unverified"
	}
}
