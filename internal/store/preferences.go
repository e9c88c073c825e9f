package store

import (
	"context"
	"fmt"

	"github.com/curiobot/curio/internal/models"
	"github.com/curiobot/curio/internal/taste"
)

// GetTopPreferences returns up to n of the user's tag weights ordered
// by descending weight. Ties keep a stable order by tag.
func (s *Store) GetTopPreferences(ctx context.Context, userID int64, n int) ([]models.TagWeight, error) {
	sql := `
		SELECT tag, weight, sample_count, updated_at
		FROM user_preferences
		WHERE user_id = $1
		ORDER BY weight DESC, tag ASC
		LIMIT $2;
	`
	rows, err := s.db.Query(ctx, sql, userID, n)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	var prefs []models.TagWeight
	for rows.Next() {
		var tw models.TagWeight
		if err := rows.Scan(&tw.Tag, &tw.Weight, &tw.SampleCount, &tw.UpdatedAt); err != nil {
			return nil, err
		}
		prefs = append(prefs, tw)
	}
	return prefs, rows.Err()
}

// SetPreference stores an explicit weight for a tag, clamped into the
// valid range.
func (s *Store) SetPreference(ctx context.Context, userID int64, tag string, weight int) error {
	sql := `
		INSERT INTO user_preferences (user_id, tag, weight, sample_count, updated_at)
		VALUES ($1, $2, $3, 1, now())
		ON CONFLICT (user_id, tag) DO UPDATE
		SET weight = EXCLUDED.weight, updated_at = now();
	`
	_, err := s.db.Exec(ctx, sql, userID, tag, taste.ApplyImpact(weight, 0))
	if err != nil {
		return fmt.Errorf("setting preference: %w", err)
	}
	return nil
}

// UpdatePreference applies a weight delta to a tag, clamping in SQL so
// concurrent updates cannot escape the [0,100] range. A tag never
// rated before starts from the neutral weight.
func (s *Store) UpdatePreference(ctx context.Context, userID int64, tag string, delta int) error {
	sql := `
		INSERT INTO user_preferences (user_id, tag, weight, sample_count, updated_at)
		VALUES ($1, $2, LEAST(100, GREATEST(0, $3 + $4)), 1, now())
		ON CONFLICT (user_id, tag) DO UPDATE
		SET weight = LEAST(100, GREATEST(0, user_preferences.weight + $4)),
		    sample_count = user_preferences.sample_count + 1,
		    updated_at = now();
	`
	_, err := s.db.Exec(ctx, sql, userID, tag, taste.DefaultWeight, delta)
	if err != nil {
		return fmt.Errorf("updating preference: %w", err)
	}
	return nil
}

// ResetPreferences removes the user's whole profile.
func (s *Store) ResetPreferences(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM user_preferences WHERE user_id = $1;`, userID)
	if err != nil {
		return fmt.Errorf("resetting preferences: %w", err)
	}
	return nil
}

// EnsureDefaults seeds any missing tags at the neutral weight without
// touching tags the user has already shaped.
func (s *Store) EnsureDefaults(ctx context.Context, userID int64, tags []string) error {
	sql := `
		INSERT INTO user_preferences (user_id, tag, weight, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, tag) DO NOTHING;
	`
	for _, tw := range taste.InitializeDefaults(tags) {
		if _, err := s.db.Exec(ctx, sql, userID, tw.Tag, tw.Weight, tw.SampleCount); err != nil {
			return fmt.Errorf("seeding tag %q: %w", tw.Tag, err)
		}
	}
	return nil
}

// ApplyRating distributes a rating's impact to every tag on the rated
// article. Each tag receives the full impact independently. A skip
// (rating 0) carries no signal and never mutates weights.
func (s *Store) ApplyRating(ctx context.Context, userID int64, tags []string, rating int) error {
	for _, ti := range taste.RatingImpacts(tags, rating) {
		if err := s.UpdatePreference(ctx, userID, ti.Tag, ti.Impact); err != nil {
			return err
		}
	}
	return nil
}

// ListActiveUsers returns every user with a stored preference profile,
// i.e. everyone eligible for a scheduled delivery.
func (s *Store) ListActiveUsers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT user_id FROM user_preferences ORDER BY user_id;`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
