package source

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/logger"
	"github.com/briefwire/newsbrief/internal/news"
	"github.com/briefwire/newsbrief/internal/retry"
)

// feedClient fetches one RSS/Atom feed.
type feedClient struct {
	cfg    config.SourceConfig
	deps   Deps
	parser *gofeed.Parser
}

func newFeedClient(cfg config.SourceConfig, deps Deps) *feedClient {
	parser := gofeed.NewParser()
	if deps.HTTPClient != nil {
		parser.Client = deps.HTTPClient
	}
	return &feedClient{cfg: cfg, deps: deps, parser: parser}
}

func (c *feedClient) Name() string { return c.cfg.Name }

func (c *feedClient) Fetch(ctx context.Context, window time.Duration) ([]*news.Article, Stats, error) {
	_ = window // feeds have no server-side window; the recency stage filters

	var stats Stats

	policy := c.deps.Retry
	policy.OnRetry = func(attempt int, err error) {
		stats.Retries++
		logger.Warn("feed fetch retrying", "source", c.cfg.Name, "attempt", attempt, "error", err.Error())
	}

	var feed *gofeed.Feed
	err := retry.WithRetry(ctx, policy, func() error {
		if c.deps.Limiter != nil {
			if err := c.deps.Limiter.Acquire(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		parsed, err := c.parser.ParseURLWithContext(c.cfg.URL, ctx)
		if err != nil {
			return classifyFeedError(ctx, err)
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, stats, unavailable(c.cfg.Name, err)
	}

	fetchedAt := c.deps.now()
	articles := make([]*news.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		article, err := makeArticle(
			c.cfg,
			item.Title,
			stripHTML(item.Description),
			stripHTML(item.Content),
			item.Link,
			published,
			fetchedAt,
		)
		if err != nil {
			stats.Malformed++
			logger.Debug("dropping malformed feed item", "source", c.cfg.Name, "error", err.Error())
			continue
		}
		articles = append(articles, article)
	}

	return articles, stats, nil
}

// classifyFeedError decides whether a gofeed failure is worth retrying.
func classifyFeedError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return retry.Permanent(ctx.Err())
	}

	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		if transientStatus(httpErr.StatusCode) {
			return fmt.Errorf("feed fetch: %w", err)
		}
		return retry.Permanent(fmt.Errorf("feed fetch: %w", err))
	}

	// Parse failures will not fix themselves on retry.
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return retry.Permanent(fmt.Errorf("feed parse: %w", err))
	}

	return fmt.Errorf("feed fetch: %w", err)
}

// stripHTML flattens feed HTML into plain text.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}

	inTag := false
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}
