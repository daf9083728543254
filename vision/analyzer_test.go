package vision

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/screenwise/screenwise/types"
)

// scriptedBackend returns canned outcomes in order and records every call.
type scriptedBackend struct {
	mu       sync.Mutex
	outcomes []scriptedOutcome
	calls    []GenerateRequest
}

type scriptedOutcome struct {
	completion string
	err        error
}

func (s *scriptedBackend) Generate(_ context.Context, req GenerateRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.outcomes) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "script exhausted").WithRetryable(true)
	}
	out := s.outcomes[0]
	s.outcomes = s.outcomes[1:]
	return out.completion, out.err
}

func (s *scriptedBackend) callModels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	models := make([]string, len(s.calls))
	for i, c := range s.calls {
		models[i] = c.Model
	}
	return models
}

func testFrame() *types.Frame {
	return &types.Frame{Data: []byte("jpegbytes"), MimeType: "image/jpeg", CapturedAt: time.Now()}
}

func fastConfig() AnalyzerConfig {
	cfg := DefaultAnalyzerConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.RequestsPerMinute = 0
	return cfg
}

const validAnalysis = `{"has_question": true, "questions": [{
	"type": "single_choice", "question_text": "q",
	"options": [{"text": "a", "is_correct": true, "confidence": 0.9}],
	"bounding_box": [0.1, 0.1, 0.2, 0.2]
}]}`

func TestAnalyzer_SuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{{completion: validAnalysis}}}
	analyzer := NewAnalyzer(fastConfig(), backend, zap.NewNop())

	result := analyzer.Analyze(context.Background(), testFrame(), AnalyzeOptions{})
	require.Nil(t, result.Err)
	assert.True(t, result.HasQuestion)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "gemini-2.0-flash", result.ModelUsed)
}

func TestAnalyzer_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{
		{err: types.NewError(types.ErrEmptyResponse, "empty").WithRetryable(true)},
		{completion: validAnalysis},
	}}
	analyzer := NewAnalyzer(fastConfig(), backend, zap.NewNop())

	result := analyzer.Analyze(context.Background(), testFrame(), AnalyzeOptions{})
	require.Nil(t, result.Err)
	assert.Equal(t, 2, result.Attempts)
	assert.Len(t, backend.calls, 2)
}

func TestAnalyzer_OverloadTriggersFallbackModel(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{
		{err: types.NewError(types.ErrModelOverloaded, "overloaded").WithRetryable(true)},
		{completion: validAnalysis},
	}}
	analyzer := NewAnalyzer(fastConfig(), backend, zap.NewNop())

	result := analyzer.Analyze(context.Background(), testFrame(), AnalyzeOptions{})
	require.Nil(t, result.Err)
	assert.Equal(t, "gemini-2.0-flash-lite", result.ModelUsed)

	models := backend.callModels()
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-2.0-flash-lite"}, models)
}

func TestAnalyzer_QuotaErrorIsTerminal(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{
		{err: types.NewError(types.ErrQuotaExceeded, "quota exceeded")},
	}}
	analyzer := NewAnalyzer(fastConfig(), backend, zap.NewNop())

	result := analyzer.Analyze(context.Background(), testFrame(), AnalyzeOptions{})
	require.NotNil(t, result.Err)
	assert.Equal(t, types.ErrQuotaExceeded, result.Err.Code)
	// No caller-side retries, and no transcription probe for terminal errors.
	assert.Len(t, backend.calls, 1)
}

func TestAnalyzer_ExhaustionRunsTranscriptionProbe(t *testing.T) {
	t.Parallel()

	transient := func() scriptedOutcome {
		return scriptedOutcome{err: types.NewError(types.ErrUpstreamError, "boom").WithRetryable(true)}
	}
	backend := &scriptedBackend{outcomes: []scriptedOutcome{
		transient(), transient(), transient(),
		{completion: "Question 7: what is the capital of France? A) Paris B) Lyon"},
	}}
	analyzer := NewAnalyzer(fastConfig(), backend, zap.NewNop())

	result := analyzer.Analyze(context.Background(), testFrame(), AnalyzeOptions{})
	require.NotNil(t, result.Err)
	assert.Equal(t, types.ErrUpstreamError, result.Err.Code)
	assert.Equal(t, 3, result.Attempts)

	// 3 analysis attempts plus the final transcription probe.
	require.Len(t, backend.calls, 4)
	probe := backend.calls[3]
	assert.Empty(t, probe.System)
	assert.False(t, probe.JSONResponse)
}

func TestAnalyzer_AuxTextAndInstructionsIncluded(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{{completion: validAnalysis}}}
	analyzer := NewAnalyzer(fastConfig(), backend, zap.NewNop())

	analyzer.Analyze(context.Background(), testFrame(), AnalyzeOptions{
		AuxText:      "ocr text here",
		Instructions: "prefer spanish answers",
		Attachments: []Attachment{
			{Kind: AttachmentText, Text: "course notes"},
			{Kind: AttachmentLink, URI: "https://example.com/syllabus.pdf", MimeType: "application/pdf"},
		},
	})

	require.Len(t, backend.calls, 1)
	parts := backend.calls[0].Parts

	// image + aux text + 2 attachments + task prompt
	require.Len(t, parts, 5)
	assert.NotNil(t, parts[0].InlineData)
	assert.Contains(t, parts[1].Text, "ocr text here")
	assert.Equal(t, "course notes", parts[2].Text)
	require.NotNil(t, parts[3].FileData)
	assert.Equal(t, "https://example.com/syllabus.pdf", parts[3].FileData.FileURI)
	assert.Contains(t, parts[4].Text, "prefer spanish answers")
}

func TestAnalyzer_EmptyFrame(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{}
	analyzer := NewAnalyzer(fastConfig(), backend, zap.NewNop())

	result := analyzer.Analyze(context.Background(), &types.Frame{}, AnalyzeOptions{})
	require.NotNil(t, result.Err)
	assert.Equal(t, types.ErrInvalidRequest, result.Err.Code)
	assert.Empty(t, backend.calls)
}

func TestOracle_Verdict(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{
		{completion: `{"is_new": true, "current_text": "Q2", "reason": "question number changed"}`},
	}}
	oracle := NewOracle(DefaultOracleConfig(), backend, zap.NewNop())

	verdict, err := oracle.CheckChanged(context.Background(), testFrame(), testFrame())
	require.NoError(t, err)
	assert.True(t, verdict.IsNew)

	// Both frames present in the request.
	images := 0
	for _, p := range backend.calls[0].Parts {
		if p.InlineData != nil {
			images++
		}
	}
	assert.Equal(t, 2, images)
}

func TestOracle_NilPrevious(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{
		{completion: `{"is_new": false, "current_text": "", "reason": "no question visible"}`},
	}}
	oracle := NewOracle(DefaultOracleConfig(), backend, zap.NewNop())

	verdict, err := oracle.CheckChanged(context.Background(), testFrame(), nil)
	require.NoError(t, err)
	assert.False(t, verdict.IsNew)

	images := 0
	for _, p := range backend.calls[0].Parts {
		if p.InlineData != nil {
			images++
		}
	}
	assert.Equal(t, 1, images)
}

func TestVerifier_Confirm(t *testing.T) {
	t.Parallel()

	backend := &scriptedBackend{outcomes: []scriptedOutcome{
		{completion: `{"selected": true}`},
	}}
	verifier := NewVerifier(DefaultVerifierConfig(), backend, zap.NewNop())

	selected, err := verifier.Confirm(context.Background(), testFrame(), "Paris")
	require.NoError(t, err)
	assert.True(t, selected)
}
