// Package aggregate assembles validated payloads into the final
// result: derived question counts, entity deduplication, and the
// reconciliation check. Pure and deterministic given its inputs.
package aggregate

import (
	"fmt"

	"github.com/discourselab/poliscope/internal/analysis"
	"github.com/discourselab/poliscope/internal/parse"
)

// Evidence spans kept per entity after merging.
const maxEvidenceSpans = 8

// Build assembles one Result. The question counts are recomputed here
// and checked against the reconciliation invariant before anything is
// returned.
func Build(id string, p *parse.Payload, meta analysis.Metadata) (*analysis.Result, error) {
	var critical, confirming, neutral int
	for _, q := range p.Questions {
		switch q.Category {
		case analysis.CategoryCritical:
			critical++
		case analysis.CategoryConfirming:
			confirming++
		default:
			neutral++
		}
	}
	total := len(p.Questions)
	if total != critical+confirming+neutral {
		return nil, fmt.Errorf("question counts do not reconcile: total %d, critical %d, confirming %d, neutral %d",
			total, critical, confirming, neutral)
	}

	entities := mergeSentiments(p.Sentiments)

	summary := p.Summary
	if summary == "" {
		summary = fmt.Sprintf("Detected %d questions (%d critical, %d confirming, %d neutral), %d biased language findings and %d entities.",
			total, critical, confirming, neutral, len(p.Findings), len(entities))
	}

	questions := p.Questions
	if questions == nil {
		questions = []analysis.QuestionRecord{}
	}
	findings := p.Findings
	if findings == nil {
		findings = []analysis.BiasedLanguageFinding{}
	}

	return &analysis.Result{
		ID:                  id,
		Questions:           questions,
		TotalQuestions:      total,
		CriticalQuestions:   critical,
		ConfirmingQuestions: confirming,
		Findings:            findings,
		Entities:            entities,
		Summary:             summary,
		Warnings:            p.Warnings,
		DroppedRecords:      p.Dropped,
		Metadata:            meta,
	}, nil
}

// mergeSentiments collapses duplicate entities by normalized name.
// Scores become the arithmetic mean of all mentions; evidence spans
// concatenate in first-seen order with exact duplicates removed. The
// stored Name keeps the casing of the first mention.
func mergeSentiments(in []analysis.EntitySentiment) map[string]analysis.EntitySentiment {
	type bucket struct {
		name     string
		sum      float64
		mentions int
		evidence []string
		seen     map[string]bool
	}

	buckets := make(map[string]*bucket)
	for _, s := range in {
		key := analysis.NormalizeEntity(s.Name)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{name: s.Name, seen: make(map[string]bool)}
			buckets[key] = b
		}
		b.sum += s.Score
		b.mentions++
		for _, span := range s.Evidence {
			if !b.seen[span] {
				b.seen[span] = true
				b.evidence = append(b.evidence, span)
			}
		}
	}

	out := make(map[string]analysis.EntitySentiment, len(buckets))
	for key, b := range buckets {
		evidence := b.evidence
		if len(evidence) > maxEvidenceSpans {
			evidence = evidence[:maxEvidenceSpans]
		}
		out[key] = analysis.EntitySentiment{
			Name:     b.name,
			Score:    b.sum / float64(b.mentions),
			Evidence: evidence,
		}
	}
	return out
}
