package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/draftwire/draftwire/internal/models"
)

// promoteLockKey is the advisory lock key serializing candidate promotion.
// Concurrent webhook deliveries race on "is anything pending?"; the lock
// makes check-then-promote a single-writer section.
const promoteLockKey = 815001

const candidateColumns = `
	id, article_id, article_title, post_text, source_url,
	approval_status, post_status, review_message_id, posted_id,
	created_at, updated_at`

// CandidateRepository persists candidate posts. It is the single source of
// truth for workflow state; callers never cache candidate rows.
type CandidateRepository struct {
	db *sql.DB
}

// NewCandidateRepository creates a new candidate repository.
func NewCandidateRepository(db *sql.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

// Create inserts a new candidate with queued approval status and pending
// post status. The record id is assigned here when the caller left it empty.
func (r *CandidateRepository) Create(ctx context.Context, c *models.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.ApprovalStatus = models.ApprovalQueued
	c.PostStatus = models.PostPending

	query := `
		INSERT INTO candidates (
			id, article_id, article_title, post_text, source_url,
			approval_status, post_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		c.ID,
		c.ArticleID,
		c.ArticleTitle,
		c.PostText,
		nullString(c.SourceURL),
		c.ApprovalStatus,
		c.PostStatus,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}

	return nil
}

// GetByReviewMessageID fetches the pending candidate associated with an
// outbound review message. Returns (nil, nil) when no candidate matches.
// Only pending candidates match, so a redelivered or late reply to an
// already-resolved message cannot re-trigger a publish.
func (r *CandidateRepository) GetByReviewMessageID(ctx context.Context, messageID string) (*models.Candidate, error) {
	query := `SELECT` + candidateColumns + `
		FROM candidates
		WHERE review_message_id = $1 AND approval_status = $2
		LIMIT 1`

	c, err := scanCandidate(r.db.QueryRowContext(ctx, query, messageID, models.ApprovalPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate by review message id: %w", err)
	}
	return c, nil
}

// ClaimNextForReview atomically promotes the oldest queued candidate to
// pending and returns it. Returns (nil, nil) when another candidate is
// already pending or the queue is empty. The advisory lock plus the
// transactional check-and-set guarantees at most one pending candidate even
// under concurrent callers.
func (r *CandidateRepository) ClaimNextForReview(ctx context.Context) (*models.Candidate, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin promotion transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", promoteLockKey); err != nil {
		return nil, fmt.Errorf("failed to take promotion lock: %w", err)
	}

	var pending bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM candidates WHERE approval_status = $1)`,
		models.ApprovalPending,
	).Scan(&pending)
	if err != nil {
		return nil, fmt.Errorf("failed to check for pending candidate: %w", err)
	}
	if pending {
		return nil, nil
	}

	// Oldest queued first; record id breaks created_at ties deterministically.
	query := `
		UPDATE candidates
		SET approval_status = $1, updated_at = NOW()
		WHERE id = (
			SELECT id FROM candidates
			WHERE approval_status = $2
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE
		)
		RETURNING` + candidateColumns

	c, err := scanCandidate(tx.QueryRowContext(ctx, query, models.ApprovalPending, models.ApprovalQueued))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim queued candidate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit promotion: %w", err)
	}

	return c, nil
}

// ReleaseToQueue reverts a claimed candidate to queued. Used when the review
// request could not be delivered, so the claim never strands a pending
// candidate with no outstanding review message.
func (r *CandidateRepository) ReleaseToQueue(ctx context.Context, id string) error {
	query := `
		UPDATE candidates
		SET approval_status = $1, review_message_id = NULL, updated_at = NOW()
		WHERE id = $2 AND approval_status = $3
	`

	_, err := r.db.ExecContext(ctx, query, models.ApprovalQueued, id, models.ApprovalPending)
	if err != nil {
		return fmt.Errorf("failed to release candidate %s to queue: %w", id, err)
	}
	return nil
}

// SetReviewMessageID stores the review channel message id after a review
// request was sent.
func (r *CandidateRepository) SetReviewMessageID(ctx context.Context, id, messageID string) error {
	query := `
		UPDATE candidates
		SET review_message_id = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := r.db.ExecContext(ctx, query, messageID, id)
	if err != nil {
		return fmt.Errorf("failed to set review message id for %s: %w", id, err)
	}
	return nil
}

// UpdateApprovalStatus updates a candidate's approval status.
func (r *CandidateRepository) UpdateApprovalStatus(ctx context.Context, id string, status models.ApprovalStatus) error {
	query := `
		UPDATE candidates
		SET approval_status = $1, updated_at = NOW()
		WHERE id = $2
	`

	_, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update approval status for %s: %w", id, err)
	}
	return nil
}

// UpdatePostStatus updates a candidate's publish outcome and, when the
// publish succeeded, the provider-assigned post id.
func (r *CandidateRepository) UpdatePostStatus(ctx context.Context, id string, status models.PostStatus, postedID string) error {
	query := `
		UPDATE candidates
		SET post_status = $1, posted_id = $2, updated_at = NOW()
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, status, nullString(postedID), id)
	if err != nil {
		return fmt.Errorf("failed to update post status for %s: %w", id, err)
	}
	return nil
}

// ExistingSourceURLs returns every distinct non-empty source URL already
// stored. Loaded once per ingestion run to build the dedup index.
func (r *CandidateRepository) ExistingSourceURLs(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT source_url
		FROM candidates
		WHERE source_url IS NOT NULL AND source_url <> ''
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing source urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan source url: %w", err)
		}
		urls = append(urls, u)
	}

	return urls, rows.Err()
}

// ListRecent returns candidates ordered newest first, for the admin API.
func (r *CandidateRepository) ListRecent(ctx context.Context, limit, offset int) ([]models.Candidate, error) {
	query := `SELECT` + candidateColumns + `
		FROM candidates
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}

	return candidates, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var (
		c         models.Candidate
		sourceURL sql.NullString
		reviewID  sql.NullString
		postedID  sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&c.ID,
		&c.ArticleID,
		&c.ArticleTitle,
		&c.PostText,
		&sourceURL,
		&c.ApprovalStatus,
		&c.PostStatus,
		&reviewID,
		&postedID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.SourceURL = sourceURL.String
	c.ReviewMessageID = reviewID.String
	c.PostedID = postedID.String
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt

	return &c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
