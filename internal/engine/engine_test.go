package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discourselab/poliscope/internal/analysis"
	"github.com/discourselab/poliscope/internal/backend"
)

// Keep the backoff out of the test runtime.
func init() {
	retryBaseDelay = time.Millisecond
}

const validReply = `{
	"questions": [
		{"text": "Waarom nu pas?", "category": "critical", "rationale": "presses on timing"},
		{"text": "Kunt u dat toelichten?", "category": "confirming"}
	],
	"biased_language": [],
	"entity_sentiments": [{"name": "De Minister", "score": -0.3, "evidence": ["Waarom nu pas?"]}],
	"summary": "Kort maar kritisch."
}`

type stubReply struct {
	content string
	err     error
}

// stubBackend replays a fixed sequence of replies, repeating the last
// one, and records what it was asked.
type stubBackend struct {
	mu      sync.Mutex
	replies []stubReply
	calls   int
	prompts []string
	models  []string
}

func (s *stubBackend) Complete(ctx context.Context, prompt string, opts ...backend.Option) (*backend.Completion, error) {
	options := &backend.Options{}
	for _, opt := range opts {
		opt(options)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.models = append(s.models, options.Model)

	i := s.calls - 1
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	r := s.replies[i]
	if r.err != nil {
		return nil, r.err
	}
	return &backend.Completion{Content: r.content, Usage: backend.Usage{TotalTokens: 10}}, nil
}

func newTestEngine(t *testing.T, replies ...stubReply) (*Engine, *stubBackend) {
	t.Helper()
	cfg, err := analysis.NewConfiguration(analysis.WithCredential("test-key"))
	require.NoError(t, err)
	stub := &stubBackend{replies: replies}
	return New(cfg, stub), stub
}

func TestAnalyzeTextEmptyInputMakesNoBackendCall(t *testing.T) {
	eng, stub := newTestEngine(t, stubReply{content: validReply})

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := eng.AnalyzeText(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
	assert.Zero(t, stub.calls)
}

func TestAnalyzeTextSuccess(t *testing.T) {
	eng, stub := newTestEngine(t, stubReply{content: validReply})

	r, err := eng.AnalyzeText(context.Background(), "Minister, waarom nu pas?")
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, 2, r.TotalQuestions)
	assert.Equal(t, 1, r.CriticalQuestions)
	assert.Equal(t, 1, r.ConfirmingQuestions)
	assert.Len(t, r.Entities, 1)
	assert.Equal(t, "Kort maar kritisch.", r.Summary)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, analysis.DefaultModel, r.Metadata.Model)
	assert.Equal(t, 1, r.Metadata.Attempts)
	assert.Equal(t, int64(10), r.Metadata.TokensUsed)
	assert.Empty(t, r.Metadata.Source)
}

func TestAnalyzeTextEmbedsTranscriptInPrompt(t *testing.T) {
	eng, stub := newTestEngine(t, stubReply{content: validReply})

	_, err := eng.AnalyzeText(context.Background(), "een unieke zin over beleid")
	require.NoError(t, err)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "een unieke zin over beleid")
}

func TestMalformedReplyRetriedWithReminder(t *testing.T) {
	eng, stub := newTestEngine(t,
		stubReply{content: "Sorry, here is my analysis in plain words."},
		stubReply{content: validReply},
	)

	r, err := eng.AnalyzeText(context.Background(), "transcript")
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls)
	assert.Contains(t, stub.prompts[1], "REMINDER")
	assert.Equal(t, 2, r.Metadata.Attempts)
	assert.Equal(t, int64(20), r.Metadata.TokensUsed)
}

func TestMalformedTwiceFailsAnalysis(t *testing.T) {
	eng, stub := newTestEngine(t,
		stubReply{content: "no structure at all"},
		stubReply{content: "still no structure"},
	)

	_, err := eng.AnalyzeText(context.Background(), "transcript")
	assert.ErrorIs(t, err, ErrAnalysisFailed)
	assert.Equal(t, 2, stub.calls)
}

func TestUnavailableBackendRetriedThenSurfaced(t *testing.T) {
	eng, stub := newTestEngine(t, stubReply{err: backend.ErrUnavailable})

	_, err := eng.AnalyzeText(context.Background(), "transcript")
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	// Initial attempt plus two retries.
	assert.Equal(t, 3, stub.calls)
}

func TestUnavailableThenRecovered(t *testing.T) {
	eng, stub := newTestEngine(t,
		stubReply{err: backend.ErrUnavailable},
		stubReply{content: validReply},
	)

	r, err := eng.AnalyzeText(context.Background(), "transcript")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, 2, r.Metadata.Attempts)
}

func TestRejectedBackendNotRetried(t *testing.T) {
	eng, stub := newTestEngine(t, stubReply{err: backend.ErrRejected})

	_, err := eng.AnalyzeText(context.Background(), "transcript")
	assert.ErrorIs(t, err, backend.ErrRejected)
	assert.Equal(t, 1, stub.calls)
}

func TestPartialResponseAcceptedWithDropCount(t *testing.T) {
	partial := `{
		"questions": [
			{"text": "Waarom?", "category": "critical"},
			{"category": "confirming"}
		],
		"summary": "ok"
	}`
	eng, stub := newTestEngine(t, stubReply{content: partial})

	r, err := eng.AnalyzeText(context.Background(), "transcript")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, 1, r.TotalQuestions)
	assert.Equal(t, 1, r.DroppedRecords)
	assert.NotEmpty(t, r.Warnings)
}

func TestResultsAreIndependent(t *testing.T) {
	eng, _ := newTestEngine(t, stubReply{content: validReply})

	r1, err := eng.AnalyzeText(context.Background(), "eerste transcript")
	require.NoError(t, err)
	r2, err := eng.AnalyzeText(context.Background(), "tweede transcript")
	require.NoError(t, err)

	assert.NotSame(t, r1, r2)
	assert.NotEqual(t, r1.ID, r2.ID)
	assert.Equal(t, r1.Questions, r2.Questions)

	// Mutating one result must not leak into the other.
	r1.Questions[0].Text = "changed"
	assert.NotEqual(t, r1.Questions[0].Text, r2.Questions[0].Text)
}

func TestPerCallOverrides(t *testing.T) {
	eng, stub := newTestEngine(t, stubReply{content: validReply})

	temp := 0.7
	r, err := eng.AnalyzeText(context.Background(), "transcript", func(o *Options) {
		o.Model = "gpt-4o-mini"
		o.Language = "German"
		o.Temperature = &temp
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", stub.models[0])
	assert.Contains(t, stub.prompts[0], "German")
	assert.Equal(t, "gpt-4o-mini", r.Metadata.Model)
	assert.Equal(t, "German", r.Metadata.Language)
	assert.Equal(t, 0.7, r.Metadata.Temperature)
}

func TestAnalyzeSourceReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interview.txt")
	require.NoError(t, os.WriteFile(path, []byte("Minister, waarom nu pas?"), 0o644))

	eng, stub := newTestEngine(t, stubReply{content: validReply})
	r, err := eng.AnalyzeSource(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, r.Metadata.Source)
	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Minister, waarom nu pas?")
}

func TestAnalyzeSourceMissingFile(t *testing.T) {
	eng, stub := newTestEngine(t, stubReply{content: validReply})

	_, err := eng.AnalyzeSource(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Zero(t, stub.calls)
}

func TestAnalyzeSourceEmptyFileIsEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0o644))

	eng, _ := newTestEngine(t, stubReply{content: validReply})
	_, err := eng.AnalyzeSource(context.Background(), path)
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestConcurrentCallsShareOneEngine(t *testing.T) {
	eng, _ := newTestEngine(t, stubReply{content: validReply})

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := eng.AnalyzeText(context.Background(), "transcript "+strings.Repeat("x", 10))
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-done)
	}
}
