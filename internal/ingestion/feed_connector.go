package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/draftwire/draftwire/internal/models"
)

// FeedsFile is the on-disk feed configuration. Substack accounts are listed
// by name and expanded to their feed URL; anything else goes in as a raw
// feed URL.
type FeedsFile struct {
	SubstackAccounts []string `yaml:"substack_accounts"`
	FeedURLs         []string `yaml:"feed_urls"`
}

// LoadFeedsFile reads and parses the feed configuration.
func LoadFeedsFile(path string) (*FeedsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds config: %w", err)
	}

	var f FeedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse feeds config: %w", err)
	}

	return &f, nil
}

// URLs returns every feed URL to poll, with substack account names expanded.
func (f *FeedsFile) URLs() []string {
	urls := make([]string, 0, len(f.SubstackAccounts)+len(f.FeedURLs))
	for _, account := range f.SubstackAccounts {
		account = strings.TrimSpace(account)
		if account == "" {
			continue
		}
		urls = append(urls, fmt.Sprintf("https://%s.substack.com/feed", account))
	}
	for _, u := range f.FeedURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}

// FeedConnector fetches articles from RSS and Atom feeds.
type FeedConnector struct {
	parser  *gofeed.Parser
	policy  RetryPolicy
	timeout time.Duration
	logger  *slog.Logger
}

// NewFeedConnector creates a feed connector with the default retry policy.
func NewFeedConnector(logger *slog.Logger) *FeedConnector {
	return &FeedConnector{
		parser:  gofeed.NewParser(),
		policy:  DefaultRetryPolicy(),
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// FetchAll retrieves articles from every feed URL. A feed that fails after
// retries is logged and skipped; one unreachable host must not sink the whole
// run. The returned articles preserve feed order.
func (c *FeedConnector) FetchAll(ctx context.Context, feedURLs []string) []models.Article {
	var all []models.Article

	for _, feedURL := range feedURLs {
		c.logger.Info("fetching feed", "url", feedURL)

		articles, err := c.fetchFeed(ctx, feedURL)
		if err != nil {
			c.logger.Error("failed to fetch feed", "url", feedURL, "error", err)
			continue
		}

		c.logger.Info("fetched feed articles", "url", feedURL, "count", len(articles))
		all = append(all, articles...)
	}

	return all
}

func (c *FeedConnector) fetchFeed(ctx context.Context, feedURL string) ([]models.Article, error) {
	var feed *gofeed.Feed

	err := Retry(ctx, c.policy, func() error {
		fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		parsed, err := c.parser.ParseURLWithContext(feedURL, fetchCtx)
		if err != nil {
			return NewRetryableError(fmt.Errorf("failed to parse feed %s: %w", feedURL, err))
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			c.logger.Warn("feed item without link, skipping", "feed", feedURL, "title", item.Title)
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		articles = append(articles, models.Article{
			ID:      itemID(item, link),
			Title:   strings.TrimSpace(item.Title),
			URL:     link,
			Content: CleanContent(content),
		})
	}

	return articles, nil
}

// itemID prefers the feed's own GUID so re-runs see stable ids.
func itemID(item *gofeed.Item, link string) string {
	if item.GUID != "" {
		return item.GUID
	}
	return link
}
