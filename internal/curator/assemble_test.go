package curator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curiobot/curio/internal/models"
)

func resolvedWith(url string) models.ResolvedArticle {
	return models.ResolvedArticle{
		ArticleIdea: models.ArticleIdea{Title: "T " + url},
		URL:         url,
	}
}

func TestDedupByURL(t *testing.T) {
	articles := []models.ResolvedArticle{
		resolvedWith("https://a.example/1"),
		resolvedWith("https://a.example/2"),
	}

	kept := dedupByURL(articles, []string{"https://a.example/1"})
	require.Len(t, kept, 1)
	assert.Equal(t, "https://a.example/2", kept[0].URL)
}

func TestDedupByURL_NeverEmptiesTheSet(t *testing.T) {
	articles := []models.ResolvedArticle{resolvedWith("https://a.example/1")}

	kept := dedupByURL(articles, []string{"https://a.example/1"})
	require.Len(t, kept, 1, "filter must be skipped when it would drop everything")
}

func TestDedupIdeasByTitle(t *testing.T) {
	ideas := []models.ArticleIdea{
		{Title: "On Liberty"},
		{Title: "The Republic"},
	}

	kept := dedupIdeasByTitle(ideas, []string{"  on liberty "})
	require.Len(t, kept, 1)
	assert.Equal(t, "The Republic", kept[0].Title)

	// All-duplicate input keeps the unfiltered set.
	kept = dedupIdeasByTitle(ideas, []string{"On Liberty", "The Republic"})
	assert.Len(t, kept, 2)
}

func TestAssemble_KeepsPrimaryWhenNothingVerifies(t *testing.T) {
	failed := models.VerificationResult{IsValid: false, Confidence: models.ConfidenceHigh}
	articles := []models.CuratedArticle{
		{ResolvedArticle: resolvedWith("https://a.example/1"), Verification: failed},
		{ResolvedArticle: resolvedWith("https://a.example/2"), Verification: failed},
	}

	set := assemble(articles)
	assert.Equal(t, "https://a.example/1", set.Primary.URL)
	require.Len(t, set.Alternatives, 1)
	assert.Equal(t, "https://a.example/2", set.Alternatives[0].URL)
}

func TestAssemble_SingleArticle(t *testing.T) {
	articles := []models.CuratedArticle{
		{ResolvedArticle: resolvedWith("https://a.example/1"), Verification: models.VerificationResult{IsValid: true}},
	}

	set := assemble(articles)
	assert.Equal(t, "https://a.example/1", set.Primary.URL)
	assert.Empty(t, set.Alternatives)
}
