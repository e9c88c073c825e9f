package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curiobot/curio/internal/models"
)

// GetExistingURLs returns the URLs of every recommendation previously
// delivered to the user, for pipeline deduplication.
func (s *Store) GetExistingURLs(ctx context.Context, userID int64) ([]string, error) {
	sql := `
		SELECT r.url
		FROM recommendations r
		JOIN user_recommendations ur ON ur.recommendation_id = r.id
		WHERE ur.user_id = $1;
	`
	return s.queryStrings(ctx, sql, userID)
}

// GetExistingTitles returns the titles of every recommendation
// previously delivered to the user.
func (s *Store) GetExistingTitles(ctx context.Context, userID int64) ([]string, error) {
	sql := `
		SELECT r.title
		FROM recommendations r
		JOIN user_recommendations ur ON ur.recommendation_id = r.id
		WHERE ur.user_id = $1;
	`
	return s.queryStrings(ctx, sql, userID)
}

func (s *Store) queryStrings(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// SaveRecommendation persists an article, idempotent on URL: saving a
// URL that already exists returns the existing record's ID.
func (s *Store) SaveRecommendation(ctx context.Context, article models.CuratedArticle) (string, error) {
	sql := `
		INSERT INTO recommendations
			(id, title, author, publication, url, description, reason, tags, category,
			 verified, is_paywall, is_search_fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (url) DO UPDATE SET title = EXCLUDED.title
		RETURNING id;
	`
	verified := article.Verification.IsValid && article.Verification.Confidence == models.ConfidenceHigh

	var id string
	err := s.db.QueryRow(ctx, sql,
		uuid.New().String(),
		article.Title,
		article.Author,
		article.Publication,
		article.URL,
		article.Description,
		article.Reason,
		article.Tags,
		article.Category,
		verified,
		article.Verification.IsPaywall,
		article.IsSearchFallback,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("saving recommendation: %w", err)
	}
	return id, nil
}

// SaveDelivery records that a recommendation reached a user, keyed to
// the transport message so a later rating callback can find it.
func (s *Store) SaveDelivery(ctx context.Context, userID int64, recommendationID string, messageID int) error {
	sql := `
		INSERT INTO user_recommendations (user_id, recommendation_id, message_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, recommendation_id) DO NOTHING;
	`
	_, err := s.db.Exec(ctx, sql, userID, recommendationID, messageID)
	if err != nil {
		return fmt.Errorf("saving delivery: %w", err)
	}
	return nil
}

// RecordRating stores a rating once. It reports whether the rating was
// applied; a delivery that was already rated is left untouched.
func (s *Store) RecordRating(ctx context.Context, userID int64, recommendationID string, rating int) (bool, error) {
	sql := `
		UPDATE user_recommendations
		SET rating = $3, rated_at = now()
		WHERE user_id = $1 AND recommendation_id = $2 AND rating IS NULL;
	`
	tag, err := s.db.Exec(ctx, sql, userID, recommendationID, rating)
	if err != nil {
		return false, fmt.Errorf("recording rating: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetRecommendationTags returns the stored tags for a recommendation,
// used to distribute a rating's impact across the profile.
func (s *Store) GetRecommendationTags(ctx context.Context, recommendationID string) ([]string, error) {
	var tags []string
	err := s.db.QueryRow(ctx,
		`SELECT tags FROM recommendations WHERE id = $1;`, recommendationID,
	).Scan(&tags)
	if err != nil {
		return nil, fmt.Errorf("loading recommendation tags: %w", err)
	}
	return tags, nil
}
