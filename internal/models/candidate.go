package models

import "time"

// ApprovalStatus tracks a candidate's position in the review workflow.
type ApprovalStatus string

const (
	ApprovalQueued   ApprovalStatus = "queued"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// PostStatus tracks the publish outcome, independent of approval.
type PostStatus string

const (
	PostPending PostStatus = "pending"
	PostPosted  PostStatus = "posted"
	PostFailed  PostStatus = "failed"
)

// Candidate is one generated social post under consideration. The database
// row is the single source of truth for its state; nothing caches it.
type Candidate struct {
	ID              string         `json:"id"`
	ArticleID       string         `json:"article_id"`
	ArticleTitle    string         `json:"article_title"`
	PostText        string         `json:"post_text"`
	SourceURL       string         `json:"source_url"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	PostStatus      PostStatus     `json:"post_status"`
	ReviewMessageID string         `json:"review_message_id,omitempty"`
	PostedID        string         `json:"posted_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Article is a source item from either ingestion path. ID is whatever the
// source uses to identify the item (curated-feed article id, or the feed
// entry GUID for pull ingestion) and is not globally unique.
type Article struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"webUrl"`
	Summary string `json:"article_summary"`
	Content string `json:"content,omitempty"`
}

// GeneratedPost associates one generated post text back to its source item.
type GeneratedPost struct {
	ArticleID string
	Text      string
}
