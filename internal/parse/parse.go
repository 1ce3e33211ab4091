// Package parse turns raw model output into validated, typed records.
// It is the trust boundary of the pipeline: model output is handled as
// an untrusted external format, and everything downstream assumes the
// payload returned here is valid.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/discourselab/poliscope/internal/analysis"
)

// ErrMalformedResponse means no usable structure was found: no JSON
// object at all, undecodable JSON, or every single record invalid.
var ErrMalformedResponse = errors.New("malformed model response")

// Categorical sentiment words some models emit instead of a number.
// Mapped to fixed scores with a recorded warning.
var categoricalScores = map[string]float64{
	"positive": 0.6,
	"negative": -0.6,
	"neutral":  0.0,
	"mixed":    0.0,
}

// Payload is the validated output of one model reply, before
// aggregation. Sentiments may still contain duplicate entities; the
// aggregator merges them.
type Payload struct {
	Questions  []analysis.QuestionRecord
	Findings   []analysis.BiasedLanguageFinding
	Sentiments []analysis.EntitySentiment
	Summary    string
	Warnings   []string
	Dropped    int
}

// Parse extracts the structured block from raw model output and
// validates it record by record. Individual invalid records are
// dropped with a warning; only a reply with no salvageable structure
// at all fails.
func Parse(raw string) (*Payload, error) {
	block := extractBlock(cleanResponse(raw))
	if block == "" {
		return nil, fmt.Errorf("%w: no JSON object found in %q", ErrMalformedResponse, snippet(raw))
	}

	var doc any
	if err := json.Unmarshal([]byte(block), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v in %q", ErrMalformedResponse, err, snippet(block))
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level JSON is not an object", ErrMalformedResponse)
	}
	root = lowerKeys(root)

	p := &Payload{}
	candidates := 0
	candidates += p.parseQuestions(listField(root, "questions", p))
	candidates += p.parseFindings(listField(root, "biased_language", p))
	candidates += p.parseSentiments(listField(root, "entity_sentiments", p))
	p.Summary = strings.TrimSpace(getString(root, "summary"))

	if candidates > 0 && len(p.Questions)+len(p.Findings)+len(p.Sentiments) == 0 {
		return nil, fmt.Errorf("%w: all %d records invalid", ErrMalformedResponse, candidates)
	}
	return p, nil
}

func (p *Payload) parseQuestions(items []any) int {
	for i, item := range items {
		rec, ok := p.recordMap(item, "question", i)
		if !ok {
			continue
		}
		if err := questionRecord.Validate(rec); err != nil {
			p.drop("question", i, err)
			continue
		}
		text := strings.TrimSpace(getString(rec, "text"))
		if text == "" {
			p.drop("question", i, errors.New("blank text"))
			continue
		}
		category, known := analysis.ParseCategory(getString(rec, "category"))
		if !known {
			p.warnf("question %d: unknown category %q coerced to neutral", i+1, getString(rec, "category"))
		}
		p.Questions = append(p.Questions, analysis.QuestionRecord{
			Text:      text,
			Category:  category,
			Rationale: strings.TrimSpace(getString(rec, "rationale")),
		})
	}
	return len(items)
}

func (p *Payload) parseFindings(items []any) int {
	for i, item := range items {
		rec, ok := p.recordMap(item, "finding", i)
		if !ok {
			continue
		}
		if err := findingRecord.Validate(rec); err != nil {
			p.drop("finding", i, err)
			continue
		}
		term := strings.TrimSpace(getString(rec, "term"))
		if term == "" {
			p.drop("finding", i, errors.New("blank term"))
			continue
		}
		direction, known := analysis.ParseDirection(getString(rec, "direction"))
		if !known {
			p.warnf("finding %d: unknown direction %q coerced to loaded", i+1, getString(rec, "direction"))
		}
		p.Findings = append(p.Findings, analysis.BiasedLanguageFinding{
			Term:         term,
			Context:      strings.TrimSpace(getString(rec, "context")),
			Direction:    direction,
			TargetEntity: targetEntity(rec),
		})
	}
	return len(items)
}

func (p *Payload) parseSentiments(items []any) int {
	for i, item := range items {
		rec, ok := p.recordMap(item, "sentiment", i)
		if !ok {
			continue
		}
		if err := sentimentRecord.Validate(rec); err != nil {
			p.drop("sentiment", i, err)
			continue
		}
		name := strings.TrimSpace(getString(rec, "name"))
		if name == "" {
			p.drop("sentiment", i, errors.New("blank entity name"))
			continue
		}
		score, warning, ok := parseScore(rec["score"])
		if !ok {
			p.drop("sentiment", i, fmt.Errorf("score %v is not a number", rec["score"]))
			continue
		}
		if warning != "" {
			p.warnf("sentiment %d (%s): %s", i+1, name, warning)
		}
		if clamped := clamp(score); clamped != score {
			p.warnf("sentiment %d (%s): score %.2f clamped to %.1f", i+1, name, score, clamped)
			score = clamped
		}
		p.Sentiments = append(p.Sentiments, analysis.EntitySentiment{
			Name:     name,
			Score:    score,
			Evidence: evidenceSpans(rec),
		})
	}
	return len(items)
}

// recordMap asserts one list item is an object and lowercases its keys
// so field lookup is case-insensitive.
func (p *Payload) recordMap(item any, kind string, i int) (map[string]any, bool) {
	rec, ok := item.(map[string]any)
	if !ok {
		p.drop(kind, i, errors.New("not an object"))
		return nil, false
	}
	return lowerKeys(rec), true
}

func (p *Payload) drop(kind string, i int, err error) {
	p.Dropped++
	p.warnf("%s %d dropped: %v", kind, i+1, err)
}

func (p *Payload) warnf(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// listField reads a top-level list, tolerating an absent or null
// field. A present field of the wrong type is ignored with a warning
// rather than failing the whole reply.
func listField(root map[string]any, key string, p *Payload) []any {
	v, present := root[key]
	if !present || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		p.warnf("field %q is not a list, ignored", key)
		return nil
	}
	return items
}

// parseScore accepts a JSON number, a numeric string, or one of the
// categorical words some models substitute for a score. The returned
// warning is non-empty when a categorical word was mapped.
func parseScore(v any) (float64, string, bool) {
	switch s := v.(type) {
	case float64:
		return s, "", true
	case string:
		trimmed := strings.TrimSpace(s)
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f, "", true
		}
		if f, ok := categoricalScores[strings.ToLower(trimmed)]; ok {
			return f, fmt.Sprintf("categorical score %q mapped to %.1f", trimmed, f), true
		}
	}
	return 0, "", false
}

func clamp(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < -1.0 {
		return -1.0
	}
	return score
}

func targetEntity(rec map[string]any) *string {
	s, ok := rec["target_entity"].(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none":
		return nil
	}
	return &s
}

func evidenceSpans(rec map[string]any) []string {
	items, ok := rec["evidence"].([]any)
	if !ok {
		return nil
	}
	var spans []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			spans = append(spans, strings.TrimSpace(s))
		}
	}
	return spans
}

// cleanResponse strips markdown code fences models like to wrap JSON in.
func cleanResponse(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	}
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// extractBlock locates the JSON object within surrounding prose: from
// the first opening brace to the last closing one.
func extractBlock(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func lowerKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func snippet(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
