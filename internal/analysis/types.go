package analysis

import "strings"

// Category classifies a detected interviewer question.
type Category string

const (
	CategoryCritical   Category = "critical"
	CategoryConfirming Category = "confirming"
	CategoryNeutral    Category = "neutral"
)

// ParseCategory maps a raw category label to a known Category,
// case-insensitively. The second return reports whether the label
// was recognized.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryCritical:
		return CategoryCritical, true
	case CategoryConfirming:
		return CategoryConfirming, true
	case CategoryNeutral:
		return CategoryNeutral, true
	}
	return CategoryNeutral, false
}

// Direction labels which way a biased term leans.
type Direction string

const (
	DirectionFavorable   Direction = "favorable"
	DirectionUnfavorable Direction = "unfavorable"
	DirectionLoaded      Direction = "loaded"
)

// ParseDirection maps a raw direction label to a known Direction,
// case-insensitively.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionFavorable:
		return DirectionFavorable, true
	case DirectionUnfavorable:
		return DirectionUnfavorable, true
	case DirectionLoaded:
		return DirectionLoaded, true
	}
	return DirectionLoaded, false
}

// NormalizeEntity produces the canonical map key for an entity name so
// that "The President" and "the president" collapse to one entry.
func NormalizeEntity(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// QuestionRecord is one detected question in the analyzed transcript.
type QuestionRecord struct {
	Text      string   `json:"text"`
	Category  Category `json:"category"`
	Rationale string   `json:"rationale,omitempty"`
}

// BiasedLanguageFinding is a flagged term or phrase with its
// surrounding context. TargetEntity is null when the bias is not
// directed at a specific entity.
type BiasedLanguageFinding struct {
	Term         string    `json:"term"`
	Context      string    `json:"context,omitempty"`
	Direction    Direction `json:"direction"`
	TargetEntity *string   `json:"target_entity"`
}

// EntitySentiment aggregates sentiment toward one named entity.
// Score is always within [-1.0, 1.0].
type EntitySentiment struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Evidence []string `json:"evidence,omitempty"`
}

// Metadata describes how a result was produced.
type Metadata struct {
	Model       string  `json:"model_used"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature"`
	Source      string  `json:"source,omitempty"`
	Duration    string  `json:"duration"`
	TokensUsed  int64   `json:"tokens_used"`
	Attempts    int     `json:"attempts"`
}

// Result is the complete outcome of one analysis call. It is fully
// populated before being returned and never mutated afterwards; its
// field set and enum vocabulary are the wire contract downstream
// consumers depend on.
type Result struct {
	ID                  string                     `json:"id"`
	Questions           []QuestionRecord           `json:"questions"`
	TotalQuestions      int                        `json:"total_questions"`
	CriticalQuestions   int                        `json:"critical_questions"`
	ConfirmingQuestions int                        `json:"confirming_questions"`
	Findings            []BiasedLanguageFinding    `json:"biased_language"`
	Entities            map[string]EntitySentiment `json:"entity_sentiments"`
	Summary             string                     `json:"summary"`
	Warnings            []string                   `json:"warnings,omitempty"`
	DroppedRecords      int                        `json:"dropped_records,omitempty"`
	Metadata            Metadata                   `json:"metadata"`
}

// NeutralQuestions is derived rather than stored; the three category
// counts always reconcile with TotalQuestions.
func (r *Result) NeutralQuestions() int {
	return r.TotalQuestions - r.CriticalQuestions - r.ConfirmingQuestions
}
