// Package app assembles the pipeline from configuration and runs one
// digest issue end to end: fetch, filter, dedup, categorize, summarize,
// render, deliver.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
	"unicode/utf8"

	"github.com/briefwire/newsbrief/internal/cache"
	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/deliver"
	"github.com/briefwire/newsbrief/internal/logger"
	"github.com/briefwire/newsbrief/internal/pipeline"
	"github.com/briefwire/newsbrief/internal/ratelimit"
	"github.com/briefwire/newsbrief/internal/render"
	"github.com/briefwire/newsbrief/internal/scrape"
	"github.com/briefwire/newsbrief/internal/source"
	"github.com/briefwire/newsbrief/internal/summarize"
)

// App owns the wiring for one run.
type App struct {
	cfg *config.Config

	// Out receives the plain text digest. Defaults to stdout.
	Out io.Writer
}

func New(cfg *config.Config) *App {
	return &App{cfg: cfg, Out: os.Stdout}
}

// Run executes one full issue. The run statistics are logged as a single
// JSON line whether the run succeeds or fails.
func (a *App) Run(ctx context.Context) error {
	sources, err := a.buildSources()
	if err != nil {
		return err
	}

	summarizer, cleanup, err := a.buildSummarizer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	p := pipeline.New(a.cfg, sources, summarizer)
	p.Enricher = scrape.NewExtractor(a.cfg.Enrich, a.httpClient())

	res, runErr := p.Run(ctx)
	if res != nil {
		logStats(&res.Stats)
	}
	if runErr != nil {
		return runErr
	}

	digest := render.Digest{
		GeneratedAt: time.Now(),
		Location:    a.cfg.Location(),
		Articles:    res.Articles,
		PerLeaning:  res.Stats.PerLeaning,
	}

	if _, err := io.WriteString(a.out(), render.Text(digest)); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	if err := writeDigestFile(digest); err != nil {
		return err
	}

	tg := deliver.NewTelegram(a.cfg.TelegramBotToken, a.cfg.TelegramChatID, nil)
	if tg.Enabled() {
		if err := sendDigest(ctx, tg, digest); err != nil {
			return fmt.Errorf("deliver digest: %w", err)
		}
	}

	return nil
}

func (a *App) out() io.Writer {
	if a.Out != nil {
		return a.Out
	}
	return os.Stdout
}

func (a *App) httpClient() *http.Client {
	return &http.Client{Timeout: a.cfg.RequestTimeout()}
}

// buildSources instantiates every configured provider. All of them share
// one HTTP client and one pacing limiter.
func (a *App) buildSources() ([]source.Source, error) {
	burst := int(a.cfg.Fetch.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	deps := source.Deps{
		HTTPClient: a.httpClient(),
		Limiter:    ratelimit.New("fetch", a.cfg.Fetch.RequestsPerSecond, burst, 0),
		Retry:      a.cfg.Fetch.Retry.Policy(),
		APIKey:     a.cfg.GNewsAPIKey,
	}

	sources := make([]source.Source, 0, len(a.cfg.Sources))
	for _, sc := range a.cfg.Sources {
		if sc.Kind == "search" && a.cfg.GNewsAPIKey == "" {
			logger.Warn("search source has no GNEWS_API_KEY, it will be skipped as unavailable", "source", sc.Name)
		}
		s, err := source.New(sc, deps)
		if err != nil {
			return nil, fmt.Errorf("configure source %q: %w", sc.Name, err)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// buildSummarizer picks providers from the configured credentials: Gemini
// primary, OpenAI fallback (or primary when it is the only key). With no
// credentials at all the pipeline runs without summaries.
func (a *App) buildSummarizer(ctx context.Context) (pipeline.ArticleSummarizer, func(), error) {
	noop := func() {}

	var primary, fallback summarize.Provider
	var closers []func()

	if a.cfg.GeminiAPIKey != "" {
		g, err := summarize.NewGemini(ctx, a.cfg.GeminiAPIKey, os.Getenv("GEMINI_MODEL"), a.cfg.Summarize.MaxSummaryTokens)
		if err != nil {
			return nil, noop, fmt.Errorf("init gemini: %w", err)
		}
		primary = g
		closers = append(closers, g.Close)
	}
	if a.cfg.OpenAIAPIKey != "" {
		p := summarize.NewOpenAI(a.cfg.OpenAIAPIKey, os.Getenv("OPENAI_MODEL"), a.cfg.Summarize.MaxSummaryTokens)
		if primary == nil {
			primary = p
		} else {
			fallback = p
		}
	}
	if primary == nil {
		logger.Warn("no summarizer credentials configured, digest will carry feed descriptions only")
		return nil, noop, nil
	}

	limiter := ratelimit.New("summarize",
		a.cfg.Summarize.RequestsPerMinute/60, 1, a.cfg.Summarize.DailyRequestCap)
	memo := cache.New()
	closers = append(closers, memo.Close)

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return summarize.New(a.cfg.Summarize, primary, fallback, limiter, memo), cleanup, nil
}

// sendDigest pushes the HTML digest to Telegram.
func sendDigest(ctx context.Context, tg *deliver.Telegram, d render.Digest) error {
	return tg.Send(ctx, digestMessage(d))
}

// digestMessage renders the digest for Telegram, shrinking it section by
// section until it fits the transport limit.
func digestMessage(d render.Digest) string {
	msg := render.HTML(d)
	for _, perSection := range []int{3, 1} {
		if len(msg) <= deliver.MaxMessageLen {
			break
		}
		logger.Warn("digest too long for telegram, shrinking", "chars", len(msg), "per_section", perSection)
		msg = render.HTML(render.Limit(d, perSection))
	}
	if len(msg) > deliver.MaxMessageLen {
		// Even one article per section overruns: fall back to plain text
		// and cut hard rather than risk splitting an HTML tag.
		msg = truncateBytes(render.Text(render.Limit(d, 1)), deliver.MaxMessageLen)
	}
	return msg
}

// truncateBytes cuts s to at most max bytes without splitting a rune.
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// writeDigestFile archives the HTML digest when DIGEST_FILE is set.
func writeDigestFile(d render.Digest) error {
	path := os.Getenv("DIGEST_FILE")
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(render.HTML(d)), 0o644); err != nil {
		return fmt.Errorf("write digest file: %w", err)
	}
	logger.Info("digest written", "path", path)
	return nil
}

func logStats(stats *pipeline.Stats) {
	line, err := json.Marshal(stats)
	if err != nil {
		logger.Error("encode run stats", "error", err)
		return
	}
	logger.Info("run stats", "stats", string(line))
}
