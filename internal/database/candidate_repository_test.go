package database

import (
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	"log/slog"

	"github.com/draftwire/draftwire/internal/models"
)

// openTestDB connects to the database named by TEST_DATABASE_URL and resets
// the candidates table. Tests are skipped when the variable is unset so the
// suite runs without a database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := DefaultConfig()
	cfg.URL = url

	db, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := RunMigrations(db, "../../migrations", logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	if _, err := db.Exec("TRUNCATE candidates"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return db
}

func TestCandidateLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db)
	ctx := context.Background()

	first := &models.Candidate{
		ArticleID: "art-1",
		PostText:  "first post",
		SourceURL: "https://example.com/1",
	}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if first.ID == "" {
		t.Fatal("id not assigned on create")
	}
	if first.ApprovalStatus != models.ApprovalQueued || first.PostStatus != models.PostPending {
		t.Fatalf("initial statuses = %s/%s", first.ApprovalStatus, first.PostStatus)
	}

	second := &models.Candidate{ArticleID: "art-2", PostText: "second post"}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create second: %v", err)
	}

	// Oldest candidate is claimed first.
	claimed, err := repo.ClaimNextForReview(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("claimed = %+v, want first candidate", claimed)
	}
	if claimed.ApprovalStatus != models.ApprovalPending {
		t.Fatalf("claimed status = %s, want pending", claimed.ApprovalStatus)
	}

	// A second claim while one is pending yields nothing.
	again, err := repo.ClaimNextForReview(ctx)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("second claim = %+v, want nil", again)
	}

	if err := repo.SetReviewMessageID(ctx, claimed.ID, "msg-1"); err != nil {
		t.Fatalf("set review message id: %v", err)
	}

	found, err := repo.GetByReviewMessageID(ctx, "msg-1")
	if err != nil {
		t.Fatalf("get by message id: %v", err)
	}
	if found == nil || found.ID != claimed.ID {
		t.Fatalf("found = %+v", found)
	}

	missing, err := repo.GetByReviewMessageID(ctx, "msg-unknown")
	if err != nil {
		t.Fatalf("get unknown message id: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing = %+v, want nil", missing)
	}

	if err := repo.UpdateApprovalStatus(ctx, claimed.ID, models.ApprovalApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := repo.UpdatePostStatus(ctx, claimed.ID, models.PostPosted, "post-1"); err != nil {
		t.Fatalf("update post status: %v", err)
	}

	// A resolved candidate no longer matches its review message, so a late
	// reply cannot re-trigger a publish.
	stale, err := repo.GetByReviewMessageID(ctx, "msg-1")
	if err != nil {
		t.Fatalf("get resolved message id: %v", err)
	}
	if stale != nil {
		t.Fatalf("stale = %+v, want nil after resolution", stale)
	}

	// With nothing pending, the next queued candidate is claimable.
	next, err := repo.ClaimNextForReview(ctx)
	if err != nil {
		t.Fatalf("claim next: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("next = %+v, want second candidate", next)
	}
}

func TestReleaseToQueue(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db)
	ctx := context.Background()

	c := &models.Candidate{ArticleID: "art-1", PostText: "text"}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := repo.ClaimNextForReview(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v, %+v", err, claimed)
	}

	if err := repo.ReleaseToQueue(ctx, claimed.ID); err != nil {
		t.Fatalf("release: %v", err)
	}

	// Released candidate is claimable again.
	reclaimed, err := repo.ClaimNextForReview(ctx)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != claimed.ID {
		t.Fatalf("reclaimed = %+v", reclaimed)
	}
}

func TestExistingSourceURLs(t *testing.T) {
	db := openTestDB(t)
	repo := NewCandidateRepository(db)
	ctx := context.Background()

	for _, c := range []*models.Candidate{
		{ArticleID: "a1", PostText: "one", SourceURL: "https://example.com/1"},
		{ArticleID: "a2", PostText: "two", SourceURL: "https://example.com/1"},
		{ArticleID: "a3", PostText: "three", SourceURL: "https://example.com/2"},
		{ArticleID: "a4", PostText: "four"},
	} {
		if err := repo.Create(ctx, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	urls, err := repo.ExistingSourceURLs(ctx)
	if err != nil {
		t.Fatalf("existing urls: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("urls = %v, want 2 distinct non-empty", urls)
	}
}
