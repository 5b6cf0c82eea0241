package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/draftwire/draftwire/internal/models"
)

type fakeStore struct {
	candidates map[string]*models.Candidate
	nextID     int

	createErr     error
	claimErr      error
	setMessageErr error
	updatePostErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{candidates: make(map[string]*models.Candidate)}
}

func (s *fakeStore) Create(ctx context.Context, c *models.Candidate) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	if c.ID == "" {
		c.ID = fmt.Sprintf("cand-%03d", s.nextID)
	}
	c.ApprovalStatus = models.ApprovalQueued
	c.PostStatus = models.PostPending
	c.CreatedAt = time.Unix(int64(s.nextID), 0)
	stored := *c
	s.candidates[c.ID] = &stored
	return nil
}

func (s *fakeStore) ClaimNextForReview(ctx context.Context) (*models.Candidate, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	for _, c := range s.candidates {
		if c.ApprovalStatus == models.ApprovalPending {
			return nil, nil
		}
	}
	var queued []*models.Candidate
	for _, c := range s.candidates {
		if c.ApprovalStatus == models.ApprovalQueued {
			queued = append(queued, c)
		}
	}
	if len(queued) == 0 {
		return nil, nil
	}
	sort.Slice(queued, func(i, j int) bool {
		if queued[i].CreatedAt.Equal(queued[j].CreatedAt) {
			return queued[i].ID < queued[j].ID
		}
		return queued[i].CreatedAt.Before(queued[j].CreatedAt)
	})
	queued[0].ApprovalStatus = models.ApprovalPending
	claimed := *queued[0]
	return &claimed, nil
}

func (s *fakeStore) ReleaseToQueue(ctx context.Context, id string) error {
	if c, ok := s.candidates[id]; ok && c.ApprovalStatus == models.ApprovalPending {
		c.ApprovalStatus = models.ApprovalQueued
		c.ReviewMessageID = ""
	}
	return nil
}

func (s *fakeStore) SetReviewMessageID(ctx context.Context, id, messageID string) error {
	if s.setMessageErr != nil {
		return s.setMessageErr
	}
	s.candidates[id].ReviewMessageID = messageID
	return nil
}

func (s *fakeStore) GetByReviewMessageID(ctx context.Context, messageID string) (*models.Candidate, error) {
	for _, c := range s.candidates {
		if c.ReviewMessageID == messageID && c.ApprovalStatus == models.ApprovalPending {
			found := *c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UpdateApprovalStatus(ctx context.Context, id string, status models.ApprovalStatus) error {
	s.candidates[id].ApprovalStatus = status
	return nil
}

func (s *fakeStore) UpdatePostStatus(ctx context.Context, id string, status models.PostStatus, postedID string) error {
	if s.updatePostErr != nil {
		return s.updatePostErr
	}
	s.candidates[id].PostStatus = status
	s.candidates[id].PostedID = postedID
	return nil
}

func (s *fakeStore) byStatus(status models.ApprovalStatus) []*models.Candidate {
	var out []*models.Candidate
	for _, c := range s.candidates {
		if c.ApprovalStatus == status {
			out = append(out, c)
		}
	}
	return out
}

type fakeReviewer struct {
	nextMessageID int
	requestErr    error
	statuses      []string
	reviewed      []string
}

func (r *fakeReviewer) RequestReview(ctx context.Context, c *models.Candidate) (string, error) {
	if r.requestErr != nil {
		return "", r.requestErr
	}
	r.nextMessageID++
	r.reviewed = append(r.reviewed, c.ID)
	return fmt.Sprintf("msg-%03d", r.nextMessageID), nil
}

func (r *fakeReviewer) SendStatus(ctx context.Context, text string) error {
	r.statuses = append(r.statuses, text)
	return nil
}

type fakePublisher struct {
	publishErr error
	published  []string
}

func (p *fakePublisher) Publish(ctx context.Context, text string) (string, error) {
	if p.publishErr != nil {
		return "", p.publishErr
	}
	p.published = append(p.published, text)
	return fmt.Sprintf("post-%03d", len(p.published)), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager() (*Manager, *fakeStore, *fakeReviewer, *fakePublisher) {
	store := newFakeStore()
	reviewer := &fakeReviewer{}
	publisher := &fakePublisher{}
	return NewManager(store, reviewer, publisher, testLogger(), nil), store, reviewer, publisher
}

func enqueueN(t *testing.T, m *Manager, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		c := &models.Candidate{
			ArticleID: fmt.Sprintf("art-%d", i),
			PostText:  fmt.Sprintf("post text %d", i),
			SourceURL: fmt.Sprintf("https://example.com/%d", i),
		}
		if err := m.Enqueue(context.Background(), c); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
}

func TestPromoteNextIfIdleClaimsOldestFirst(t *testing.T) {
	m, store, reviewer, _ := newTestManager()
	enqueueN(t, m, 3)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("PromoteNextIfIdle: %v", err)
	}

	pending := store.byStatus(models.ApprovalPending)
	if len(pending) != 1 {
		t.Fatalf("pending candidates = %d, want 1", len(pending))
	}
	if pending[0].ID != "cand-001" {
		t.Fatalf("promoted candidate = %s, want cand-001", pending[0].ID)
	}
	if len(reviewer.reviewed) != 1 || reviewer.reviewed[0] != "cand-001" {
		t.Fatalf("reviewed = %v, want [cand-001]", reviewer.reviewed)
	}
	if pending[0].ReviewMessageID == "" {
		t.Fatal("review message id not stored after promotion")
	}
}

func TestPromoteNextIfIdleNoOpWhenPending(t *testing.T) {
	m, store, reviewer, _ := newTestManager()
	enqueueN(t, m, 2)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("first promote: %v", err)
	}
	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("second promote: %v", err)
	}

	if got := len(store.byStatus(models.ApprovalPending)); got != 1 {
		t.Fatalf("pending candidates = %d, want 1", got)
	}
	if len(reviewer.reviewed) != 1 {
		t.Fatalf("review requests = %d, want 1", len(reviewer.reviewed))
	}
}

func TestPromoteNextIfIdleEmptyQueue(t *testing.T) {
	m, _, reviewer, _ := newTestManager()

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("PromoteNextIfIdle on empty queue: %v", err)
	}
	if len(reviewer.reviewed) != 0 {
		t.Fatalf("review requests = %d, want 0", len(reviewer.reviewed))
	}
}

func TestPromoteReleasesClaimOnDeliveryFailure(t *testing.T) {
	m, store, reviewer, _ := newTestManager()
	enqueueN(t, m, 1)

	reviewer.requestErr = errors.New("telegram down")

	err := m.PromoteNextIfIdle(context.Background())
	if err == nil {
		t.Fatal("expected error when review delivery fails")
	}

	if got := len(store.byStatus(models.ApprovalPending)); got != 0 {
		t.Fatalf("pending candidates after failed delivery = %d, want 0", got)
	}
	if got := len(store.byStatus(models.ApprovalQueued)); got != 1 {
		t.Fatalf("queued candidates after failed delivery = %d, want 1", got)
	}

	// Queue recovers once delivery works again.
	reviewer.requestErr = nil
	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote after recovery: %v", err)
	}
	if got := len(store.byStatus(models.ApprovalPending)); got != 1 {
		t.Fatalf("pending candidates after recovery = %d, want 1", got)
	}
}

func TestResolveRejectAdvancesQueue(t *testing.T) {
	m, store, _, publisher := newTestManager()
	enqueueN(t, m, 2)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	msgID := store.candidates["cand-001"].ReviewMessageID

	outcome, err := m.Resolve(context.Background(), msgID, "/reject")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if outcome.Decision != DecisionReject {
		t.Fatalf("decision = %q, want reject", outcome.Decision)
	}
	if store.candidates["cand-001"].ApprovalStatus != models.ApprovalRejected {
		t.Fatalf("approval status = %q, want rejected", store.candidates["cand-001"].ApprovalStatus)
	}
	if len(publisher.published) != 0 {
		t.Fatalf("published %d posts for a rejection, want 0", len(publisher.published))
	}
	// The next candidate must be in review now.
	if store.candidates["cand-002"].ApprovalStatus != models.ApprovalPending {
		t.Fatalf("next candidate status = %q, want pending", store.candidates["cand-002"].ApprovalStatus)
	}
}

func TestResolveApprovePublishesWithSourceURL(t *testing.T) {
	m, store, _, publisher := newTestManager()
	enqueueN(t, m, 1)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	msgID := store.candidates["cand-001"].ReviewMessageID

	outcome, err := m.Resolve(context.Background(), msgID, "approve")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if outcome.Decision != DecisionApprove {
		t.Fatalf("decision = %q, want approve", outcome.Decision)
	}
	if outcome.PostedID == "" {
		t.Fatal("expected posted id in outcome")
	}

	c := store.candidates["cand-001"]
	if c.ApprovalStatus != models.ApprovalApproved {
		t.Fatalf("approval status = %q, want approved", c.ApprovalStatus)
	}
	if c.PostStatus != models.PostPosted {
		t.Fatalf("post status = %q, want posted", c.PostStatus)
	}

	want := "post text 0\nhttps://example.com/0"
	if len(publisher.published) != 1 || publisher.published[0] != want {
		t.Fatalf("published = %v, want [%q]", publisher.published, want)
	}
}

func TestResolveEditPublishesReplyTextButKeepsStoredText(t *testing.T) {
	m, store, _, publisher := newTestManager()
	enqueueN(t, m, 1)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	msgID := store.candidates["cand-001"].ReviewMessageID

	outcome, err := m.Resolve(context.Background(), msgID, "A much better take")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if outcome.Decision != DecisionEdit {
		t.Fatalf("decision = %q, want edit", outcome.Decision)
	}

	want := "A much better take\nhttps://example.com/0"
	if len(publisher.published) != 1 || publisher.published[0] != want {
		t.Fatalf("published = %v, want [%q]", publisher.published, want)
	}
	// Edits change what gets published, not the stored candidate text.
	if store.candidates["cand-001"].PostText != "post text 0" {
		t.Fatalf("stored post text = %q, want original", store.candidates["cand-001"].PostText)
	}
}

func TestResolvePublishFailureStillAdvancesQueue(t *testing.T) {
	m, store, reviewer, publisher := newTestManager()
	enqueueN(t, m, 2)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	msgID := store.candidates["cand-001"].ReviewMessageID

	publisher.publishErr = errors.New("api rejected the post")

	outcome, err := m.Resolve(context.Background(), msgID, "yes")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if outcome.PublishErr == nil {
		t.Fatal("expected publish error in outcome")
	}
	if store.candidates["cand-001"].PostStatus != models.PostFailed {
		t.Fatalf("post status = %q, want failed", store.candidates["cand-001"].PostStatus)
	}
	// Approval remains approved even though publishing failed.
	if store.candidates["cand-001"].ApprovalStatus != models.ApprovalApproved {
		t.Fatalf("approval status = %q, want approved", store.candidates["cand-001"].ApprovalStatus)
	}
	// Queue advanced regardless of the publish failure.
	if store.candidates["cand-002"].ApprovalStatus != models.ApprovalPending {
		t.Fatalf("next candidate status = %q, want pending", store.candidates["cand-002"].ApprovalStatus)
	}

	foundFailureNotice := false
	for _, s := range reviewer.statuses {
		if strings.Contains(s, "Failed to publish") {
			foundFailureNotice = true
		}
	}
	if !foundFailureNotice {
		t.Fatalf("no failure notification sent, statuses = %v", reviewer.statuses)
	}
}

func TestResolveSecondReplyDoesNotRepublish(t *testing.T) {
	m, store, _, publisher := newTestManager()
	enqueueN(t, m, 1)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	msgID := store.candidates["cand-001"].ReviewMessageID

	if _, err := m.Resolve(context.Background(), msgID, "yes"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	// A redelivered or late reply to the same message must be a no-op.
	_, err := m.Resolve(context.Background(), msgID, "yes")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Resolve err = %v, want ErrNotFound", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d times, want 1", len(publisher.published))
	}
}

func TestResolveUnknownMessageReturnsErrNotFound(t *testing.T) {
	m, _, _, _ := newTestManager()

	_, err := m.Resolve(context.Background(), "msg-does-not-exist", "yes")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveEmptyReplyApprovesOriginal(t *testing.T) {
	m, store, _, publisher := newTestManager()
	enqueueN(t, m, 1)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	msgID := store.candidates["cand-001"].ReviewMessageID

	outcome, err := m.Resolve(context.Background(), msgID, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if outcome.Decision != DecisionApprove {
		t.Fatalf("decision = %q, want approve", outcome.Decision)
	}
	want := "post text 0\nhttps://example.com/0"
	if len(publisher.published) != 1 || publisher.published[0] != want {
		t.Fatalf("published = %v, want [%q]", publisher.published, want)
	}
}

func TestFullQueueDrain(t *testing.T) {
	m, store, _, _ := newTestManager()
	enqueueN(t, m, 3)

	if err := m.PromoteNextIfIdle(context.Background()); err != nil {
		t.Fatalf("promote: %v", err)
	}

	replies := []string{"yes", "/reject", "Edited text"}
	for _, reply := range replies {
		pending := store.byStatus(models.ApprovalPending)
		if len(pending) != 1 {
			t.Fatalf("pending = %d, want 1", len(pending))
		}
		if _, err := m.Resolve(context.Background(), pending[0].ReviewMessageID, reply); err != nil {
			t.Fatalf("Resolve(%q): %v", reply, err)
		}
	}

	if got := len(store.byStatus(models.ApprovalPending)); got != 0 {
		t.Fatalf("pending after drain = %d, want 0", got)
	}
	if got := len(store.byStatus(models.ApprovalQueued)); got != 0 {
		t.Fatalf("queued after drain = %d, want 0", got)
	}
}
