package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/draftwire/draftwire/internal/models"
)

// Fetcher retrieves articles from configured feeds.
type Fetcher interface {
	FetchAll(ctx context.Context, feedURLs []string) []models.Article
}

// Generator produces candidate post texts for a single article.
type Generator interface {
	GenerateSingle(ctx context.Context, a models.Article) ([]string, error)
}

// Enqueuer adds candidates to the approval queue and advances it.
type Enqueuer interface {
	Enqueue(ctx context.Context, c *models.Candidate) error
	PromoteNextIfIdle(ctx context.Context) error
}

// RunStats summarizes one ingestion run.
type RunStats struct {
	Fetched    int
	Duplicates int
	Enqueued   int
	Failed     int
}

// Processor runs the pull-ingestion pipeline: fetch feeds, drop already-seen
// URLs, generate a post per new article, and enqueue the results.
type Processor struct {
	fetcher   Fetcher
	urlLister URLLister
	generator Generator
	queue     Enqueuer
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewProcessor creates an ingestion processor. The limiter paces generation
// calls; pass nil to disable pacing.
func NewProcessor(fetcher Fetcher, urlLister URLLister, generator Generator, queue Enqueuer, limiter *rate.Limiter, logger *slog.Logger) *Processor {
	return &Processor{
		fetcher:   fetcher,
		urlLister: urlLister,
		generator: generator,
		queue:     queue,
		limiter:   limiter,
		logger:    logger,
	}
}

// Run executes one ingestion pass over the given feed URLs. Per-article
// failures are logged and skipped so one bad article never sinks the run.
// The queue is nudged once at the end, even when nothing was enqueued, so a
// previously stalled queue gets unstuck by the next scheduled run.
func (p *Processor) Run(ctx context.Context, feedURLs []string) (*RunStats, error) {
	index, err := LoadURLIndex(ctx, p.urlLister)
	if err != nil {
		return nil, fmt.Errorf("failed to load dedup index: %w", err)
	}

	articles := p.fetcher.FetchAll(ctx, feedURLs)
	stats := &RunStats{Fetched: len(articles)}

	for _, article := range articles {
		if index.IsDuplicate(article.URL) {
			stats.Duplicates++
			p.logger.Debug("skipping already-seen article", "url", article.URL)
			continue
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return stats, fmt.Errorf("ingestion run cancelled: %w", err)
			}
		}

		texts, err := p.generator.GenerateSingle(ctx, article)
		if err != nil {
			stats.Failed++
			p.logger.Error("generation failed for article",
				"url", article.URL,
				"error", err,
			)
			continue
		}
		if len(texts) == 0 {
			p.logger.Info("no post generated for article", "url", article.URL)
			continue
		}

		for _, text := range texts {
			candidate := &models.Candidate{
				ArticleID:    article.ID,
				ArticleTitle: article.Title,
				PostText:     text,
				SourceURL:    article.URL,
			}
			if err := p.queue.Enqueue(ctx, candidate); err != nil {
				stats.Failed++
				p.logger.Error("failed to enqueue candidate",
					"url", article.URL,
					"error", err,
				)
				continue
			}
			stats.Enqueued++
		}
	}

	if err := p.queue.PromoteNextIfIdle(ctx); err != nil {
		p.logger.Error("failed to advance queue after ingestion run", "error", err)
	}

	p.logger.Info("ingestion run complete",
		"fetched", stats.Fetched,
		"duplicates", stats.Duplicates,
		"enqueued", stats.Enqueued,
		"failed", stats.Failed,
	)

	return stats, nil
}
