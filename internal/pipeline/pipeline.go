// Package pipeline orchestrates one digest run as a fixed sequence of
// stages: fetch, recency filter, dedupe, classify, arrange, summarize.
// Each stage consumes the previous stage's fully materialized output, so
// a run is reproducible for identical inputs. Stage failures degrade the
// run; only zero usable articles or the loss of every source fail it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/briefwire/newsbrief/internal/classify"
	"github.com/briefwire/newsbrief/internal/config"
	"github.com/briefwire/newsbrief/internal/dedup"
	"github.com/briefwire/newsbrief/internal/logger"
	"github.com/briefwire/newsbrief/internal/metrics"
	"github.com/briefwire/newsbrief/internal/news"
	"github.com/briefwire/newsbrief/internal/recency"
	"github.com/briefwire/newsbrief/internal/source"
	"github.com/briefwire/newsbrief/internal/summarize"
)

// Fatal run conditions.
var (
	ErrNoSources        = errors.New("no sources available")
	ErrNoRecentArticles = errors.New("no articles within recency window")
)

// RunError is the structured failure a run ends with: the stage that was
// executing and the condition that killed it.
type RunError struct {
	Stage State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// State names the stage a run is in.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateFiltering
	StateDeduplicating
	StateCategorizing
	StateSummarizing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	"idle", "fetching", "filtering", "deduplicating",
	"categorizing", "summarizing", "done", "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ArticleSummarizer fills in an article's summary fields.
type ArticleSummarizer interface {
	Summarize(ctx context.Context, a *news.Article) error
}

// Enricher optionally fetches fuller article text before summarization.
type Enricher interface {
	Enrich(ctx context.Context, articles []*news.Article) int
}

// Pipeline runs the ingestion stages over the configured sources.
type Pipeline struct {
	// Enricher and Now may be set after New; both are optional.
	Enricher Enricher
	Now      func() time.Time

	cfg        *config.Config
	sources    []source.Source
	classifier *classify.Classifier
	summarizer ArticleSummarizer
}

// New builds a pipeline. summarizer may be nil, in which case every
// article passes through flagged unsummarized.
func New(cfg *config.Config, sources []source.Source, summarizer ArticleSummarizer) *Pipeline {
	return &Pipeline{
		Now:        time.Now,
		cfg:        cfg,
		sources:    sources,
		classifier: classify.New(cfg.Sources),
		summarizer: summarizer,
	}
}

// Result is the outcome of one run. On failure Articles is nil and Stats
// still carries the counts collected up to the failing stage.
type Result struct {
	Articles []*news.Article
	Stats    Stats
}

// Run executes one complete pipeline pass under the configured wall
// clock budget. Budget expiry cancels in-flight network calls but keeps
// everything already processed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.Now()
	stats := newStats(start)

	if budget := p.cfg.RunBudget(); budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	logger.Info("Pipeline run starting", "run_id", stats.RunID, "sources", len(p.sources))

	p.transition(&stats, StateFetching)
	articles := p.fetch(ctx, &stats)
	if stats.SourcesUnavailable == len(p.sources) && len(p.sources) > 0 && ctx.Err() == nil {
		return p.fail(&stats, start, fmt.Errorf("%w: all %d sources failed", ErrNoSources, len(p.sources)))
	}

	p.transition(&stats, StateFiltering)
	fres := recency.Filter(articles, p.cfg.Window(), p.Now(), p.cfg.Location())
	stats.RecencyDropped = stats.Fetched - len(fres.Kept)
	stats.Estimated = fres.Estimated
	stats.AfterFilter = len(fres.Kept)
	if len(fres.Kept) == 0 {
		return p.fail(&stats, start, fmt.Errorf("%w: %d fetched, all outside %s",
			ErrNoRecentArticles, stats.Fetched, p.cfg.Window()))
	}

	p.transition(&stats, StateDeduplicating)
	dres := dedup.Dedupe(fres.Kept, p.cfg.Dedup.SimilarityThreshold)
	stats.ExactDuplicates = dres.ExactDrops
	stats.FuzzyDuplicates = dres.FuzzyDrops
	stats.AfterDedup = len(dres.Kept)
	metrics.Global.AddDuplicatesRemoved(dres.ExactDrops + dres.FuzzyDrops)

	p.transition(&stats, StateCategorizing)
	p.classifier.Apply(dres.Kept)
	arranged := arrange(dres.Kept, p.cfg.Limits)
	stats.Arranged = len(arranged)

	if p.Enricher != nil && ctx.Err() == nil {
		stats.Enriched = p.Enricher.Enrich(ctx, arranged)
	}

	p.transition(&stats, StateSummarizing)
	final := p.summarizeAll(ctx, arranged, &stats)

	p.transition(&stats, StateDone)
	for _, a := range final {
		stats.PerCategory[a.Category]++
		stats.PerLeaning[a.SourceLeaning]++
	}
	stats.Output = len(final)
	stats.Duration = p.Now().Sub(start)

	metrics.Global.RecordRunDuration(stats.Duration)
	metrics.Global.SetLastRun()
	logger.Info("Pipeline run complete",
		"run_id", stats.RunID,
		"fetched", stats.Fetched,
		"after_filter", stats.AfterFilter,
		"after_dedup", stats.AfterDedup,
		"output", stats.Output,
		"summarized", stats.Summarized,
		"duration", stats.Duration.Round(time.Millisecond).String())

	return &Result{Articles: final, Stats: stats}, nil
}

func (p *Pipeline) transition(stats *Stats, next State) {
	stats.State = next
	logger.Debug("Pipeline stage", "run_id", stats.RunID, "state", next.String())
}

func (p *Pipeline) fail(stats *Stats, start time.Time, err error) (*Result, error) {
	failedIn := stats.State
	p.transition(stats, StateFailed)
	stats.addError(err.Error())
	stats.Duration = p.Now().Sub(start)

	metrics.Global.SetError(err.Error())
	metrics.Global.RecordRunDuration(stats.Duration)
	logger.Error("Pipeline run failed", "run_id", stats.RunID, "stage", failedIn.String(), "error", err.Error())

	return &Result{Stats: *stats}, &RunError{Stage: failedIn, Err: err}
}

// fetch queries every source through a bounded worker pool and merges the
// results in source declaration order, which fixes the precedence the
// deduplicator's first-occurrence rule resolves against.
func (p *Pipeline) fetch(ctx context.Context, stats *Stats) []*news.Article {
	type outcome struct {
		articles []*news.Article
		stats    source.Stats
		err      error
	}
	results := make([]outcome, len(p.sources))

	g := new(errgroup.Group)
	if p.cfg.Fetch.Workers > 0 {
		g.SetLimit(p.cfg.Fetch.Workers)
	}
	for i, src := range p.sources {
		g.Go(func() error {
			articles, st, err := src.Fetch(ctx, p.cfg.Window())
			results[i] = outcome{articles: articles, stats: st, err: err}
			return nil
		})
	}
	g.Wait()

	var merged []*news.Article
	for i, src := range p.sources {
		r := results[i]
		report := SourceReport{
			Name:      src.Name(),
			Fetched:   len(r.articles),
			Malformed: r.stats.Malformed,
			Retries:   r.stats.Retries,
		}
		stats.Retries += r.stats.Retries
		stats.Malformed += r.stats.Malformed
		for j := 0; j < r.stats.Malformed; j++ {
			metrics.Global.IncrementMalformed()
		}

		if r.err != nil {
			report.Err = r.err.Error()
			if errors.Is(r.err, source.ErrUnavailable) {
				stats.SourcesUnavailable++
			}
			stats.addError(r.err.Error())
			metrics.Global.IncrementSourcesFailed()
			logger.Warn("Source contributed nothing", "source", src.Name(), "error", r.err.Error())
		}

		merged = append(merged, r.articles...)
		stats.Sources = append(stats.Sources, report)
	}

	stats.Fetched = len(merged)
	metrics.Global.AddFetched(len(merged))
	return merged
}

// summarizeAll runs the summarizer over the arranged articles. Permanent
// per-article failures follow the configured policy; losing the
// summarizer (quota) or the run budget keeps the remaining articles and
// flags them unsummarized, whatever the policy says, since those articles
// did not fail individually.
func (p *Pipeline) summarizeAll(ctx context.Context, articles []*news.Article, stats *Stats) []*news.Article {
	if p.summarizer == nil {
		for _, a := range articles {
			a.Unsummarized = true
		}
		return articles
	}

	drop := strings.EqualFold(p.cfg.Summarize.FailurePolicy, "drop")
	out := articles[:0]
	halted := false

	for i, a := range articles {
		if halted || ctx.Err() != nil {
			a.Unsummarized = true
			out = append(out, a)
			continue
		}

		err := p.summarizer.Summarize(ctx, a)
		switch {
		case err == nil:
			stats.Summarized++
			out = append(out, a)

		case errors.Is(err, summarize.ErrUnavailable):
			halted = true
			stats.addError(err.Error())
			logger.Warn("Summarizer unavailable for the rest of the run",
				"remaining", len(articles)-i)
			a.Unsummarized = true
			out = append(out, a)

		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			halted = true
			logger.Warn("Run budget exhausted during summarization",
				"remaining", len(articles)-i)
			a.Unsummarized = true
			out = append(out, a)

		default:
			stats.SummaryFailed++
			stats.addError(err.Error())
			if drop {
				stats.DroppedUnsummarized++
				continue
			}
			a.Unsummarized = true
			out = append(out, a)
		}
	}
	return out
}

func newStats(start time.Time) Stats {
	return Stats{
		RunID:       uuid.NewString(),
		StartedAt:   start,
		State:       StateIdle,
		PerCategory: make(map[news.Category]int),
		PerLeaning:  make(map[news.Leaning]int),
	}
}
