package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/draftwire/draftwire/internal/models"
)

// CuratedFeedRepository reads pre-curated article batches delivered by the
// upstream curation service. Each row holds one batch as a JSON blob keyed
// by the (user_id, created_at) correlation pair from the webhook payload.
type CuratedFeedRepository struct {
	db *sql.DB
}

// NewCuratedFeedRepository creates a new curated feed repository.
func NewCuratedFeedRepository(db *sql.DB) *CuratedFeedRepository {
	return &CuratedFeedRepository{db: db}
}

// FetchArticles returns the curated article batch for the given correlation
// pair. A missing batch yields an empty slice, not an error.
func (r *CuratedFeedRepository) FetchArticles(ctx context.Context, userID, createdAt string) ([]models.Article, error) {
	query := `
		SELECT curated_articles
		FROM curated_feeds
		WHERE user_id = $1 AND created_at = $2
		LIMIT 1
	`

	var blob []byte
	err := r.db.QueryRowContext(ctx, query, userID, createdAt).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch curated articles: %w", err)
	}

	var articles []models.Article
	if err := json.Unmarshal(blob, &articles); err != nil {
		return nil, fmt.Errorf("failed to decode curated articles: %w", err)
	}

	return articles, nil
}
