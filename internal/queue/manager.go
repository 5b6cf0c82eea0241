package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draftwire/draftwire/internal/metrics"
	"github.com/draftwire/draftwire/internal/models"
)

// ErrNotFound indicates that no candidate matches a review message id, for
// example a reply to an unrelated or expired message. Benign for callers.
var ErrNotFound = errors.New("no candidate matches the review message")

// Store is the candidate persistence contract the manager depends on. Every
// state transition is a read-modify-write against the store; the manager
// keeps no copy of candidate state.
type Store interface {
	Create(ctx context.Context, c *models.Candidate) error
	ClaimNextForReview(ctx context.Context) (*models.Candidate, error)
	ReleaseToQueue(ctx context.Context, id string) error
	SetReviewMessageID(ctx context.Context, id, messageID string) error
	GetByReviewMessageID(ctx context.Context, messageID string) (*models.Candidate, error)
	UpdateApprovalStatus(ctx context.Context, id string, status models.ApprovalStatus) error
	UpdatePostStatus(ctx context.Context, id string, status models.PostStatus, postedID string) error
}

// Reviewer sends review requests and status notifications over the review
// channel.
type Reviewer interface {
	RequestReview(ctx context.Context, c *models.Candidate) (messageID string, err error)
	SendStatus(ctx context.Context, text string) error
}

// Publisher posts final text to the social network.
type Publisher interface {
	Publish(ctx context.Context, text string) (postID string, err error)
}

// Manager owns the approval-queue state machine: it enqueues generated
// candidates, promotes the oldest queued candidate into the single review
// slot, and applies terminal transitions driven by review replies.
type Manager struct {
	store     Store
	reviewer  Reviewer
	publisher Publisher
	logger    *slog.Logger
	collector *metrics.PipelineCollector
}

// NewManager creates a queue manager. The collector may be nil.
func NewManager(store Store, reviewer Reviewer, publisher Publisher, logger *slog.Logger, collector *metrics.PipelineCollector) *Manager {
	return &Manager{
		store:     store,
		reviewer:  reviewer,
		publisher: publisher,
		logger:    logger,
		collector: collector,
	}
}

// Enqueue persists a new candidate in the queued state. No side effects
// beyond persistence; promotion is a separate step.
func (m *Manager) Enqueue(ctx context.Context, c *models.Candidate) error {
	if err := m.store.Create(ctx, c); err != nil {
		return fmt.Errorf("failed to enqueue candidate for article %s: %w", c.ArticleID, err)
	}

	m.collector.CandidateEnqueued()
	m.logger.Info("candidate enqueued",
		"candidate_id", c.ID,
		"article_id", c.ArticleID,
	)

	return nil
}

// PromoteNextIfIdle moves the oldest queued candidate into review when no
// candidate is currently pending. A no-op when a review is already in flight
// or the queue is empty. A review delivery failure releases the claim back
// to the queue and propagates, so the claim never outlives its review
// message.
func (m *Manager) PromoteNextIfIdle(ctx context.Context) error {
	c, err := m.store.ClaimNextForReview(ctx)
	if err != nil {
		return fmt.Errorf("failed to claim next candidate: %w", err)
	}
	if c == nil {
		m.logger.Debug("no candidate to promote")
		return nil
	}

	messageID, err := m.reviewer.RequestReview(ctx, c)
	if err != nil {
		if releaseErr := m.store.ReleaseToQueue(ctx, c.ID); releaseErr != nil {
			m.logger.Error("failed to release candidate after review send failure",
				"candidate_id", c.ID,
				"error", releaseErr,
			)
		}
		return fmt.Errorf("failed to request review for candidate %s: %w", c.ID, err)
	}

	if err := m.store.SetReviewMessageID(ctx, c.ID, messageID); err != nil {
		// Losing the message id orphans the in-flight review; surface it.
		return fmt.Errorf("failed to store review message id for candidate %s: %w", c.ID, err)
	}

	m.collector.CandidatePromoted()
	m.logger.Info("candidate promoted for review",
		"candidate_id", c.ID,
		"review_message_id", messageID,
	)

	return nil
}

// Outcome describes the result of resolving one review reply. PublishErr is
// set when the candidate was approved but publishing failed; that failure is
// terminal for the candidate and never blocks queue advancement.
type Outcome struct {
	Decision   Decision
	Candidate  *models.Candidate
	PostedID   string
	PublishErr error
}

// Resolve applies the decision carried by a review reply to the candidate
// associated with reviewMessageID. Queue advancement happens after every
// resolution, regardless of the publish outcome; a promotion failure is
// returned alongside the outcome so callers can report the resolution and
// still surface the error.
func (m *Manager) Resolve(ctx context.Context, reviewMessageID, replyText string) (*Outcome, error) {
	c, err := m.store.GetByReviewMessageID(ctx, reviewMessageID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up candidate for message %s: %w", reviewMessageID, err)
	}
	if c == nil {
		return nil, fmt.Errorf("review message %s: %w", reviewMessageID, ErrNotFound)
	}

	decision, editedText := ClassifyReply(replyText)
	outcome := &Outcome{Decision: decision, Candidate: c}
	var resolveErr error

	switch decision {
	case DecisionReject:
		if err := m.store.UpdateApprovalStatus(ctx, c.ID, models.ApprovalRejected); err != nil {
			return nil, fmt.Errorf("failed to reject candidate %s: %w", c.ID, err)
		}
		m.collector.ReviewResolved(string(DecisionReject))
		m.logger.Info("candidate rejected", "candidate_id", c.ID)

	case DecisionApprove, DecisionEdit:
		if err := m.store.UpdateApprovalStatus(ctx, c.ID, models.ApprovalApproved); err != nil {
			return nil, fmt.Errorf("failed to approve candidate %s: %w", c.ID, err)
		}
		m.collector.ReviewResolved(string(decision))

		// The stored post_text keeps the generated text; an edit only
		// changes what gets published.
		text := c.PostText
		if decision == DecisionEdit {
			text = editedText
		}
		if c.SourceURL != "" {
			text = text + "\n" + c.SourceURL
		}

		resolveErr = m.publish(ctx, c, text, outcome)
	}

	// Queue advancement is unconditional after resolution; a publish
	// failure must never stall the pipeline.
	if err := m.PromoteNextIfIdle(ctx); err != nil {
		resolveErr = errors.Join(resolveErr, fmt.Errorf("resolved candidate %s but failed to advance queue: %w", c.ID, err))
	}

	return outcome, resolveErr
}

// publish posts the final text and records the terminal publish state. A
// publish failure is recorded as failed, notified, and kept in the outcome
// rather than returned, because it is terminal for the candidate and the
// queue must advance anyway. Store write failures do propagate: losing the
// terminal state is worse than a failed publish.
func (m *Manager) publish(ctx context.Context, c *models.Candidate, text string, outcome *Outcome) error {
	postedID, err := m.publisher.Publish(ctx, text)
	if err != nil {
		m.collector.PublishCompleted("failed")
		m.logger.Error("publish failed", "candidate_id", c.ID, "error", err)
		outcome.PublishErr = err

		m.notify(ctx, fmt.Sprintf("❌ Failed to publish post: %v", err))

		if updateErr := m.store.UpdatePostStatus(ctx, c.ID, models.PostFailed, ""); updateErr != nil {
			return fmt.Errorf("failed to record failed publish for %s: %w", c.ID, updateErr)
		}
		return nil
	}

	m.collector.PublishCompleted("posted")
	m.logger.Info("candidate published", "candidate_id", c.ID, "posted_id", postedID)
	outcome.PostedID = postedID

	m.notify(ctx, fmt.Sprintf("✅ Post published successfully!\nPost ID: %s", postedID))

	if updateErr := m.store.UpdatePostStatus(ctx, c.ID, models.PostPosted, postedID); updateErr != nil {
		return fmt.Errorf("failed to record successful publish for %s: %w", c.ID, updateErr)
	}
	return nil
}

// notify sends a best-effort status notification; failures are logged only.
func (m *Manager) notify(ctx context.Context, text string) {
	if err := m.reviewer.SendStatus(ctx, text); err != nil {
		m.logger.Error("failed to send status notification", "error", err)
	}
}
