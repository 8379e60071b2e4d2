package pipeline

import (
	"time"

	"github.com/briefwire/newsbrief/internal/news"
)

const maxRunErrors = 10

// SourceReport is one source's contribution to a run.
type SourceReport struct {
	Name      string `json:"name"`
	Fetched   int    `json:"fetched"`
	Malformed int    `json:"malformed"`
	Retries   int    `json:"retries"`
	Err       string `json:"error,omitempty"`
}

// Stats aggregates everything a run did, stage by stage. It is the
// structured record logged at the end of a run and is meant to be enough
// to diagnose a bad digest without re-running.
type Stats struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	State     State         `json:"state"`

	Sources            []SourceReport `json:"sources"`
	SourcesUnavailable int            `json:"sources_unavailable"`

	Fetched         int `json:"fetched"`
	Malformed       int `json:"malformed"`
	Retries         int `json:"retries"`
	RecencyDropped  int `json:"recency_dropped"`
	Estimated       int `json:"estimated_dates"`
	AfterFilter     int `json:"after_filter"`
	ExactDuplicates int `json:"exact_duplicates"`
	FuzzyDuplicates int `json:"fuzzy_duplicates"`
	AfterDedup      int `json:"after_dedup"`
	Arranged        int `json:"arranged"`
	Enriched        int `json:"enriched"`

	Summarized          int `json:"summarized"`
	SummaryFailed       int `json:"summary_failed"`
	DroppedUnsummarized int `json:"dropped_unsummarized"`

	Output      int                   `json:"output"`
	PerCategory map[news.Category]int `json:"per_category"`
	PerLeaning  map[news.Leaning]int  `json:"per_leaning"`

	Errors []string `json:"errors,omitempty"`
}

// addError keeps the most recent errors, oldest evicted first.
func (s *Stats) addError(msg string) {
	if len(s.Errors) >= maxRunErrors {
		copy(s.Errors, s.Errors[1:])
		s.Errors[len(s.Errors)-1] = msg
		return
	}
	s.Errors = append(s.Errors, msg)
}
