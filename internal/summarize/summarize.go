// Package summarize turns article text into digest copy: a short summary,
// a few key takeaways and a one line why-it-matters. Calls to the model
// provider are rate limited, retried on transient failures and memoized
// by article content.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/briefwire/newsbrief/internal/cache"
	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/logger"
	"github.com/briefwire/newsbrief/internal/metrics"
	"github.com/briefwire/newsbrief/internal/news"
	"github.com/briefwire/newsbrief/internal/ratelimit"
	"github.com/briefwire/newsbrief/internal/retry"
)

// ErrUnavailable means the summarizer cannot serve for the rest of the
// run, typically because the daily request quota is spent.
var ErrUnavailable = errors.New("summarizer unavailable")

// Error reports a failed summarization for one article.
type Error struct {
	ArticleID string
	Permanent bool
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("summarize article %s: %v", e.ArticleID, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Result is the parsed output of one summarization call.
type Result struct {
	Summary      string
	KeyTakeaways []string
	WhyItMatters string
}

// Provider generates raw model text for a prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

const memoTTL = 24 * time.Hour

// Summarizer coordinates providers, rate limits and the memo cache.
type Summarizer struct {
	cfg      config.SummarizeConfig
	provider Provider
	fallback Provider
	limiter  *ratelimit.Limiter
	memo     *cache.Cache

	down atomic.Bool
}

// New builds a summarizer. fallback and memo may be nil.
func New(cfg config.SummarizeConfig, provider, fallback Provider, limiter *ratelimit.Limiter, memo *cache.Cache) *Summarizer {
	return &Summarizer{
		cfg:      cfg,
		provider: provider,
		fallback: fallback,
		limiter:  limiter,
		memo:     memo,
	}
}

// Summarize fills in the article's summary fields. It returns
// ErrUnavailable once the quota is spent, the context error when the run
// budget expires, or an *Error for a per-article failure.
func (s *Summarizer) Summarize(ctx context.Context, a *news.Article) error {
	if s.down.Load() {
		return ErrUnavailable
	}

	key := cache.Key(a.Title, a.Text())
	if s.memo != nil {
		if hit, ok := s.memo.Get(key); ok {
			apply(a, Result{Summary: hit.Text, KeyTakeaways: hit.KeyTakeaways, WhyItMatters: hit.WhyItMatters})
			logger.Debug("Summary served from cache", "article", a.ID)
			return nil
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrQuotaExhausted) {
				s.down.Store(true)
				return fmt.Errorf("daily request cap reached: %w", ErrUnavailable)
			}
			return err
		}
	}

	prompt := buildPrompt(a, s.cfg)

	raw, err := s.generate(ctx, s.provider, prompt)
	if err != nil && s.fallback != nil && ctx.Err() == nil {
		logger.Warn("Primary summarizer failed, trying fallback",
			"primary", s.provider.Name(), "fallback", s.fallback.Name(), "error", err)
		raw, err = s.generate(ctx, s.fallback, prompt)
	}
	if err != nil {
		metrics.Global.IncrementSummaryFailures()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{ArticleID: a.ID, Permanent: !isTransient(err), Cause: err}
	}

	result, err := parseResponse(raw, a)
	if err != nil {
		metrics.Global.IncrementSummaryFailures()
		return &Error{ArticleID: a.ID, Permanent: true, Cause: err}
	}

	apply(a, result)
	if s.memo != nil {
		s.memo.Set(key, cache.Summary{
			Text:         result.Summary,
			KeyTakeaways: result.KeyTakeaways,
			WhyItMatters: result.WhyItMatters,
		}, memoTTL)
	}
	metrics.Global.IncrementSummarized()
	return nil
}

// generate runs one provider through the retry policy, counting retries
// and cutting off on permanent errors.
func (s *Summarizer) generate(ctx context.Context, p Provider, prompt string) (string, error) {
	policy := s.cfg.Retry.Policy()
	policy.OnRetry = func(attempt int, err error) {
		metrics.Global.IncrementRetries()
		logger.Debug("Retrying summarization", "provider", p.Name(), "attempt", attempt, "error", err)
	}

	var raw string
	err := retry.WithRetry(ctx, policy, func() error {
		out, err := p.Generate(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return retry.Permanent(err)
			}
			if !isTransient(err) {
				return retry.Permanent(err)
			}
			return err
		}
		raw = out
		return nil
	})
	return raw, err
}

func apply(a *news.Article, r Result) {
	a.Summary = r.Summary
	a.KeyTakeaways = r.KeyTakeaways
	a.WhyItMatters = r.WhyItMatters
	a.Unsummarized = false
}

// buildPrompt assembles the model prompt with the article text cut down
// to the configured character budget.
func buildPrompt(a *news.Article, cfg config.SummarizeConfig) string {
	content := truncate(a.Text(), cfg.InputCharBudget)
	words := cfg.MaxSummaryTokens * 3 / 4
	if words <= 0 {
		words = 100
	}

	return fmt.Sprintf(`You are writing copy for a daily news digest.

ARTICLE:
Title: %s
Source: %s
Content: %s

TASKS:

Write a concise summary of the article in two to three sentences, no more than %d words.

List the two or three most important takeaways.

Explain in one sentence why this story matters to a general reader.

Reply strictly in this template:

SUMMARY: <the summary>

KEY TAKEAWAYS:
- <first takeaway>
- <second takeaway>

WHY IT MATTERS: <one sentence>
`, a.Title, a.SourceName, content, words)
}

// truncate cuts text to at most budget runes, preferring to end on a
// sentence boundary, and marks the cut.
func truncate(text string, budget int) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.Join(strings.Fields(text), " ")
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return text
	}

	runes := []rune(text)
	trimmed := string(runes[:budget])
	if idx := strings.LastIndex(trimmed, ". "); idx > budget/5 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "\n[TRUNCATED]"
}
