// Package source fetches raw articles from the configured news providers.
// Each provider owns its retry and rate-limit behavior; fatal auth or quota
// errors surface as ErrUnavailable so the pipeline can degrade instead of
// aborting the run.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/news"
	"github.com/briefwire/newsbrief/internal/retry"
)

// ErrUnavailable marks a source that contributed nothing to this run:
// bad credentials, spent quota, or transient failures that outlived the
// retry budget.
var ErrUnavailable = errors.New("source unavailable")

// Stats counts what happened during one source's fetch.
type Stats struct {
	Malformed int // payloads dropped for missing title or url
	Retries   int // transient failures that were retried
}

// Source is one configured news provider.
type Source interface {
	Name() string
	// Fetch returns the source's articles published within the window.
	// A nil error with zero articles is a valid empty result; an error
	// wrapping ErrUnavailable means the source is out for this run.
	Fetch(ctx context.Context, window time.Duration) ([]*news.Article, Stats, error)
}

// New builds a Source from its configuration.
func New(cfg config.SourceConfig, deps Deps) (Source, error) {
	switch cfg.Kind {
	case "search":
		return newSearchClient(cfg, deps), nil
	case "rss":
		return newFeedClient(cfg, deps), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// Deps carries the shared collaborators every source client uses.
type Deps struct {
	HTTPClient *http.Client
	Limiter    Limiter
	Retry      retry.Policy
	APIKey     string // search provider credential
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Limiter is the pacing gate shared across fetch calls.
type Limiter interface {
	Acquire(ctx context.Context) error
}

func unavailable(name string, cause error) error {
	return fmt.Errorf("source %q: %w: %v", name, ErrUnavailable, cause)
}

// transientStatus reports whether an HTTP status is worth retrying.
// Auth and quota failures are deliberately excluded: retrying them burns
// quota without any chance of success.
func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func fatalStatus(code int) bool {
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// makeArticle validates a raw payload and builds the Article record.
// Returns an error for malformed payloads (missing title or url); callers
// count those instead of failing the fetch.
func makeArticle(cfg config.SourceConfig, title, description, content, rawURL string, published time.Time, fetchedAt time.Time) (*news.Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("payload missing title")
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("payload missing url")
	}
	canonical, err := news.CanonicalURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("bad url: %w", err)
	}

	return &news.Article{
		ID:            news.MakeID(canonical),
		Title:         title,
		Description:   strings.TrimSpace(description),
		RawContent:    strings.TrimSpace(content),
		URL:           rawURL,
		CanonicalURL:  canonical,
		SourceName:    cfg.Name,
		SourceLeaning: news.ParseLeaning(cfg.Leaning),
		PublishedAt:   published,
		FetchedAt:     fetchedAt,
	}, nil
}
