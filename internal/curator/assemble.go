package curator

import "github.com/curiobot/curio/internal/models"

// dedupIdeasByTitle drops ideas whose normalized title the user has
// already seen. If that would drop everything, the filter is skipped:
// a possible repeat beats an empty delivery.
func dedupIdeasByTitle(ideas []models.ArticleIdea, seenTitles []string) []models.ArticleIdea {
	if len(ideas) == 0 || len(seenTitles) == 0 {
		return ideas
	}

	seen := make(map[string]struct{}, len(seenTitles))
	for _, title := range seenTitles {
		seen[normalizeTitle(title)] = struct{}{}
	}

	kept := make([]models.ArticleIdea, 0, len(ideas))
	for _, idea := range ideas {
		if _, dup := seen[normalizeTitle(idea.Title)]; !dup {
			kept = append(kept, idea)
		}
	}

	if len(kept) == 0 {
		return ideas
	}
	return kept
}

// dedupByURL drops resolved articles whose URL the user has already
// received, with the same never-empty guarantee as the title filter.
func dedupByURL(articles []models.ResolvedArticle, seenURLs []string) []models.ResolvedArticle {
	if len(articles) == 0 || len(seenURLs) == 0 {
		return articles
	}

	seen := make(map[string]struct{}, len(seenURLs))
	for _, u := range seenURLs {
		seen[u] = struct{}{}
	}

	kept := make([]models.ResolvedArticle, 0, len(articles))
	for _, article := range articles {
		if _, dup := seen[article.URL]; !dup {
			kept = append(kept, article)
		}
	}

	if len(kept) == 0 {
		return articles
	}
	return kept
}

// assemble designates the first article as primary and the rest as
// alternates. A primary whose verification failed outright is swapped
// for the first alternate that verified; the demoted primary and any
// skipped alternates stay in the alternates list in their original
// order.
func assemble(articles []models.CuratedArticle) models.CuratedSet {
	primaryIdx := 0
	if !articles[0].Verification.IsValid {
		for i := 1; i < len(articles); i++ {
			if articles[i].Verification.IsValid {
				primaryIdx = i
				break
			}
		}
	}

	set := models.CuratedSet{Primary: articles[primaryIdx]}
	for i, article := range articles {
		if i != primaryIdx {
			set.Alternatives = append(set.Alternatives, article)
		}
	}
	return set
}
