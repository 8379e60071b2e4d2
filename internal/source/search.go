package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/logger"
	"github.com/briefwire/newsbrief/internal/news"
	"github.com/briefwire/newsbrief/internal/retry"
)

const (
	defaultSearchBaseURL = "https://gnews.io/api/v4"
	maxSearchResults     = 25 // provider caps at 100
)

// searchClient queries a GNews-style article search API.
type searchClient struct {
	cfg     config.SourceConfig
	deps    Deps
	baseURL string
}

type searchResponse struct {
	TotalArticles int             `json:"totalArticles"`
	Articles      []searchArticle `json:"articles"`
	Errors        []string        `json:"errors,omitempty"`
}

type searchArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func newSearchClient(cfg config.SourceConfig, deps Deps) *searchClient {
	return &searchClient{cfg: cfg, deps: deps, baseURL: defaultSearchBaseURL}
}

func (c *searchClient) Name() string { return c.cfg.Name }

func (c *searchClient) Fetch(ctx context.Context, window time.Duration) ([]*news.Article, Stats, error) {
	var stats Stats

	if c.deps.APIKey == "" {
		return nil, stats, unavailable(c.cfg.Name, errors.New("no api key configured"))
	}

	policy := c.deps.Retry
	policy.OnRetry = func(attempt int, err error) {
		stats.Retries++
		logger.Warn("search fetch retrying", "source", c.cfg.Name, "attempt", attempt, "error", err.Error())
	}

	var payload searchResponse
	err := retry.WithRetry(ctx, policy, func() error {
		if c.deps.Limiter != nil {
			if err := c.deps.Limiter.Acquire(ctx); err != nil {
				return retry.Permanent(err)
			}
		}
		return c.search(ctx, window, &payload)
	})
	if err != nil {
		return nil, stats, unavailable(c.cfg.Name, err)
	}

	fetchedAt := c.deps.now()
	articles := make([]*news.Article, 0, len(payload.Articles))
	for _, raw := range payload.Articles {
		published, _ := parseSearchDate(raw.PublishedAt)
		article, err := makeArticle(c.cfg, raw.Title, raw.Description, raw.Content, raw.URL, published, fetchedAt)
		if err != nil {
			stats.Malformed++
			logger.Debug("dropping malformed search payload", "source", c.cfg.Name, "error", err.Error())
			continue
		}
		articles = append(articles, article)
	}

	return articles, stats, nil
}

// search performs one HTTP round trip. Transient failures come back as
// plain errors so WithRetry keeps going; fatal ones are wrapped Permanent.
func (c *searchClient) search(ctx context.Context, window time.Duration, out *searchResponse) error {
	params := url.Values{}
	params.Set("q", c.cfg.Query)
	params.Set("lang", "en")
	if c.cfg.Locale != "" {
		params.Set("country", strings.ToLower(c.cfg.Locale))
	}
	params.Set("max", fmt.Sprintf("%d", maxSearchResults))
	params.Set("from", c.deps.now().Add(-window).UTC().Format(time.RFC3339))
	params.Set("apikey", c.deps.APIKey)

	reqURL := c.baseURL + "/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}

	resp, err := c.deps.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("failed to close response body", "error", closeErr.Error())
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case transientStatus(resp.StatusCode):
		return fmt.Errorf("status %d: %s", resp.StatusCode, firstErrorLine(body))
	case fatalStatus(resp.StatusCode):
		return retry.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, firstErrorLine(body)))
	default:
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	*out = searchResponse{}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(out.Errors) > 0 {
		return retry.Permanent(fmt.Errorf("provider error: %s", out.Errors[0]))
	}
	return nil
}

// firstErrorLine pulls the provider's error message out of an error body,
// falling back to the raw text.
func firstErrorLine(body []byte) string {
	var payload struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		return payload.Errors[0]
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// parseSearchDate parses the provider's RFC3339 timestamps. A zero time with
// ok=false means the article carries no usable date and will get an
// estimated one downstream.
func parseSearchDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
