package aggregate

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discourselab/poliscope/internal/analysis"
	"github.com/discourselab/poliscope/internal/parse"
)

func TestBuildCountsReconcile(t *testing.T) {
	p := &parse.Payload{
		Questions: []analysis.QuestionRecord{
			{Text: "q1", Category: analysis.CategoryCritical},
			{Text: "q2", Category: analysis.CategoryCritical},
			{Text: "q3", Category: analysis.CategoryConfirming},
			{Text: "q4", Category: analysis.CategoryNeutral},
			{Text: "q5", Category: analysis.CategoryNeutral},
		},
	}

	r, err := Build("id-1", p, analysis.Metadata{})
	require.NoError(t, err)

	assert.Equal(t, 5, r.TotalQuestions)
	assert.Equal(t, 2, r.CriticalQuestions)
	assert.Equal(t, 1, r.ConfirmingQuestions)
	assert.Equal(t, 2, r.NeutralQuestions())
	assert.Equal(t, r.TotalQuestions, r.CriticalQuestions+r.ConfirmingQuestions+r.NeutralQuestions())
}

func TestBuildMergesDuplicateEntities(t *testing.T) {
	p := &parse.Payload{
		Sentiments: []analysis.EntitySentiment{
			{Name: "Prime Minister", Score: 0.8, Evidence: []string{"span one"}},
			{Name: "prime minister", Score: 0.2, Evidence: []string{"span two", "span one"}},
			{Name: "  Prime Minister ", Score: 0.2, Evidence: []string{"span three"}},
		},
	}

	r, err := Build("id-1", p, analysis.Metadata{})
	require.NoError(t, err)

	require.Len(t, r.Entities, 1)
	e, ok := r.Entities["prime minister"]
	require.True(t, ok)
	assert.Equal(t, "Prime Minister", e.Name)
	assert.InDelta(t, 0.4, e.Score, 1e-9)
	assert.Equal(t, []string{"span one", "span two", "span three"}, e.Evidence)
}

func TestBuildCapsEvidenceSpans(t *testing.T) {
	var spans []string
	for i := 0; i < 12; i++ {
		spans = append(spans, fmt.Sprintf("span %d", i))
	}
	p := &parse.Payload{
		Sentiments: []analysis.EntitySentiment{{Name: "VVD", Score: 0.1, Evidence: spans}},
	}

	r, err := Build("id-1", p, analysis.Metadata{})
	require.NoError(t, err)
	assert.Len(t, r.Entities["vvd"].Evidence, maxEvidenceSpans)
	assert.Equal(t, "span 0", r.Entities["vvd"].Evidence[0])
}

func TestBuildPassesSummaryThrough(t *testing.T) {
	p := &parse.Payload{Summary: "Een kritisch gesprek."}
	r, err := Build("id-1", p, analysis.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "Een kritisch gesprek.", r.Summary)
}

func TestBuildSynthesizesSummaryWhenMissing(t *testing.T) {
	p := &parse.Payload{
		Questions: []analysis.QuestionRecord{{Text: "q", Category: analysis.CategoryCritical}},
	}
	r, err := Build("id-1", p, analysis.Metadata{})
	require.NoError(t, err)
	assert.Contains(t, r.Summary, "1 critical")
}

func TestBuildEmptyPayloadHasNonNilCollections(t *testing.T) {
	r, err := Build("id-1", &parse.Payload{}, analysis.Metadata{})
	require.NoError(t, err)
	assert.NotNil(t, r.Questions)
	assert.NotNil(t, r.Findings)
	assert.NotNil(t, r.Entities)
	assert.Zero(t, r.TotalQuestions)
}

func TestBuildCarriesWarningsAndDrops(t *testing.T) {
	p := &parse.Payload{
		Warnings: []string{"question 2 dropped: missing text"},
		Dropped:  1,
	}
	r, err := Build("id-1", p, analysis.Metadata{Model: "gpt-4"})
	require.NoError(t, err)
	assert.Equal(t, 1, r.DroppedRecords)
	assert.Len(t, r.Warnings, 1)
	assert.Equal(t, "gpt-4", r.Metadata.Model)
}

func TestBuildIsDeterministic(t *testing.T) {
	p := &parse.Payload{
		Questions: []analysis.QuestionRecord{{Text: "q", Category: analysis.CategoryCritical}},
		Sentiments: []analysis.EntitySentiment{
			{Name: "CDA", Score: 0.5},
			{Name: "cda", Score: -0.5},
		},
	}
	a, err := Build("same-id", p, analysis.Metadata{})
	require.NoError(t, err)
	b, err := Build("same-id", p, analysis.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotSame(t, a, b)
}
