// Package engine orchestrates one analysis call: prompt construction,
// the backend round trip with its retry policy, response validation
// and aggregation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/discourselab/poliscope/internal/aggregate"
	"github.com/discourselab/poliscope/internal/analysis"
	"github.com/discourselab/poliscope/internal/backend"
	"github.com/discourselab/poliscope/internal/metrics"
	"github.com/discourselab/poliscope/internal/parse"
	"github.com/discourselab/poliscope/internal/prompt"
	"github.com/discourselab/poliscope/internal/source"
)

var (
	ErrEmptyInput        = errors.New("empty input text")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrAnalysisFailed    = errors.New("analysis failed")
)

// Two extra attempts against an unavailable backend, doubling from
// 500ms. Rejections and malformed replies follow their own rules in
// analyze.
var (
	maxBackendRetries = 2
	retryBaseDelay    = 500 * time.Millisecond
)

// Option adjusts a single call without touching the engine
// configuration.
type Option func(*Options)

// Options carries per-call overrides. Temperature is a pointer so an
// explicit 0.0 stays distinguishable from unset.
type Options struct {
	Model       string
	Language    string
	Temperature *float64
}

// Engine runs analyses. It is stateless apart from its immutable
// configuration, so a single instance can serve concurrent callers.
type Engine struct {
	cfg     analysis.Configuration
	backend backend.Backend
}

func New(cfg analysis.Configuration, b backend.Backend) *Engine {
	return &Engine{
		cfg:     cfg,
		backend: b,
	}
}

// AnalyzeText runs one full analysis of the given transcript.
func (e *Engine) AnalyzeText(ctx context.Context, text string, opts ...Option) (*analysis.Result, error) {
	return e.analyze(ctx, text, "", opts)
}

// AnalyzeSource loads the transcript behind locator and analyzes it.
// A locator that cannot be read fails as ErrSourceUnavailable, never
// as empty input.
func (e *Engine) AnalyzeSource(ctx context.Context, locator string, opts ...Option) (*analysis.Result, error) {
	text, err := source.Load(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return e.analyze(ctx, text, locator, opts)
}

func (e *Engine) analyze(ctx context.Context, text, locator string, opts []Option) (*analysis.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	options := &Options{
		Model:    e.cfg.Model,
		Language: e.cfg.Language,
	}
	for _, opt := range opts {
		opt(options)
	}
	temperature := e.cfg.Temperature
	if options.Temperature != nil {
		temperature = *options.Temperature
	}

	slog.Info("Starting analysis", "model", options.Model, "language", options.Language, "chars", len(text))
	startTime := time.Now()

	callOpts := []backend.Option{func(o *backend.Options) {
		o.Model = options.Model
		o.Temperature = temperature
	}}

	comp, attempts, err := e.complete(ctx, prompt.Build(text, options.Language), callOpts)
	if err != nil {
		return nil, e.fail(startTime, err)
	}
	tokens := comp.Usage.TotalTokens

	payload, err := parse.Parse(comp.Content)
	if err != nil {
		// One retry with the schema restated; a second unparseable
		// reply is terminal.
		slog.Warn("Model reply unparseable, retrying with schema reminder", "error", err)
		retryComp, retryAttempts, retryErr := e.complete(ctx, prompt.BuildRetry(text, options.Language), callOpts)
		attempts += retryAttempts
		if retryErr != nil {
			return nil, e.fail(startTime, retryErr)
		}
		tokens += retryComp.Usage.TotalTokens
		payload, err = parse.Parse(retryComp.Content)
		if err != nil {
			return nil, e.fail(startTime, fmt.Errorf("%w: %v", ErrAnalysisFailed, err))
		}
	}

	if payload.Dropped > 0 {
		// Partial results are accepted, not retried; the loss stays
		// visible on the result and the counter.
		metrics.DroppedRecords.Add(float64(payload.Dropped))
		slog.Warn("Accepted partial response", "dropped", payload.Dropped)
	}

	meta := analysis.Metadata{
		Model:       options.Model,
		Language:    options.Language,
		Temperature: temperature,
		Source:      locator,
		Duration:    time.Since(startTime).String(),
		TokensUsed:  tokens,
		Attempts:    attempts,
	}

	result, err := aggregate.Build(uuid.NewString(), payload, meta)
	if err != nil {
		return nil, e.fail(startTime, fmt.Errorf("%w: %v", ErrAnalysisFailed, err))
	}

	metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.AnalysisDuration.Observe(time.Since(startTime).Seconds())
	slog.Info("Analysis complete",
		"id", result.ID,
		"questions", result.TotalQuestions,
		"entities", len(result.Entities),
		"dropped", result.DroppedRecords,
		"duration", meta.Duration,
	)
	return result, nil
}

// complete performs the backend round trip, retrying only while the
// backend is unavailable. Returns the number of attempts made.
func (e *Engine) complete(ctx context.Context, userPrompt string, opts []backend.Option) (*backend.Completion, int, error) {
	var lastErr error
	for attempt := 0; attempt <= maxBackendRetries; attempt++ {
		if attempt > 0 {
			backoff := retryBaseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("Backend unavailable, backing off", "attempt", attempt, "backoff", backoff, "error", lastErr)
			metrics.BackendRetries.Inc()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, attempt, fmt.Errorf("%w: %v", backend.ErrUnavailable, ctx.Err())
			}
		}

		comp, err := e.backend.Complete(ctx, userPrompt, opts...)
		if err == nil {
			return comp, attempt + 1, nil
		}
		if !errors.Is(err, backend.ErrUnavailable) {
			// Rejections are terminal; retrying cannot succeed.
			return nil, attempt + 1, err
		}
		lastErr = err
	}
	return nil, maxBackendRetries + 1, lastErr
}

func (e *Engine) fail(startTime time.Time, err error) error {
	metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
	metrics.AnalysisDuration.Observe(time.Since(startTime).Seconds())
	slog.Error("Analysis failed", "error", err)
	return err
}
