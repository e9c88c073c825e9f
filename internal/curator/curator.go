package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/curiobot/curio/internal/models"
	"github.com/curiobot/curio/internal/taste"
)

const (
	// Ideas requested from Stage A per cycle.
	defaultIdeaCount = 3
	// Weighted tags embedded in the ideation prompt.
	promptTagCount = 5
)

// ErrNoIdeas means Stage A produced nothing usable; the cycle cannot
// continue.
var ErrNoIdeas = errors.New("no ideas generated")

// ErrNoCandidates means the full pipeline produced no surfaceable
// article. This is the only error a user ever sees.
var ErrNoCandidates = errors.New("no candidates survived the pipeline")

// Provider is the generation backend. Stage A ideates without a search
// tool; Stage B locates a URL with one.
type Provider interface {
	GenerateIdeas(ctx context.Context, tags []models.TagWeight, seenTitles []string, count int) ([]models.ArticleIdea, error)
	LocateURL(ctx context.Context, idea models.ArticleIdea) (articleURL, source string, err error)
}

// LinkChecker grades a candidate URL. Verification is informational:
// it influences ranking but never aborts the pipeline.
type LinkChecker interface {
	Verify(ctx context.Context, rawURL, expectedTitle string) models.VerificationResult
}

// Curator is the two-stage recommendation pipeline: ideate, then
// locate each idea concurrently, then assemble a primary pick with
// ranked alternates. It holds no mutable state across calls.
type Curator struct {
	provider  Provider
	links     LinkChecker
	ideaCount int
}

func New(provider Provider, links LinkChecker) *Curator {
	return &Curator{
		provider:  provider,
		links:     links,
		ideaCount: defaultIdeaCount,
	}
}

// Curate runs one full cycle for the given preference profile and
// history. seenURLs and seenTitles are read-only inputs.
func (c *Curator) Curate(ctx context.Context, prefs []models.TagWeight, seenURLs, seenTitles []string) (*models.CuratedSet, error) {
	topTags := taste.TopN(prefs, promptTagCount)

	ideas, err := c.provider.GenerateIdeas(ctx, topTags, seenTitles, c.ideaCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoIdeas, err)
	}

	ideas = dedupIdeasByTitle(ideas, seenTitles)

	resolved := c.locateAll(ctx, ideas)
	resolved = dedupByURL(resolved, seenURLs)
	if len(resolved) == 0 {
		return nil, ErrNoCandidates
	}

	articles := make([]models.CuratedArticle, 0, len(resolved))
	for _, article := range resolved {
		articles = append(articles, models.CuratedArticle{
			ResolvedArticle: article,
			Verification:    c.links.Verify(ctx, article.URL, article.Title),
		})
	}

	set := assemble(articles)
	return &set, nil
}

// locateAll fans Stage B out across ideas. Lookups run concurrently
// with an all-settled join: one failure never aborts the siblings, and
// results keep the idea order, not completion order. An idea whose
// lookup fails degrades to a search-fallback URL; no idea is dropped.
func (c *Curator) locateAll(ctx context.Context, ideas []models.ArticleIdea) []models.ResolvedArticle {
	resolved := make([]models.ResolvedArticle, len(ideas))

	var wg sync.WaitGroup
	for i, idea := range ideas {
		wg.Add(1)
		go func(i int, idea models.ArticleIdea) {
			defer wg.Done()

			articleURL, source, err := c.provider.LocateURL(ctx, idea)
			if err != nil {
				slog.Warn("URL lookup failed, degrading to search fallback",
					"title", idea.Title,
					"error", err,
				)
				resolved[i] = models.ResolvedArticle{
					ArticleIdea:      idea,
					URL:              SearchFallbackURL(idea),
					IsSearchFallback: true,
				}
				return
			}

			resolved[i] = models.ResolvedArticle{
				ArticleIdea: idea,
				URL:         articleURL,
				Source:      source,
			}
		}(i, idea)
	}
	wg.Wait()

	return resolved
}

// SearchFallbackURL builds the synthetic search link substituted when
// no direct URL could be confirmed for an idea.
func SearchFallbackURL(idea models.ArticleIdea) string {
	query := idea.Title + " " + idea.Author
	if idea.Publication != "" {
		query += " " + idea.Publication
	}
	return "https://www.google.com/search?q=" + url.QueryEscape(query)
}

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
