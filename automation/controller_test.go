package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenwise/screenwise/textdiff"
	"github.com/screenwise/screenwise/types"
)

type testRig struct {
	controller *Controller
	session    *Session
	source     *fakeSource
	ocr        *fakeOCR
	oracle     *fakeOracle
	analyzer   *fakeAnalyzer
	verifier   *fakeVerifier
	executor   *fakeExecutor
	clock      *fakeClock
	reports    []Report
}

func newRig(t *testing.T, mutate func(*Config)) *testRig {
	t.Helper()

	rig := &testRig{
		source:   &fakeSource{},
		ocr:      &fakeOCR{},
		oracle:   &fakeOracle{},
		analyzer: &fakeAnalyzer{},
		verifier: &fakeVerifier{},
		executor: &fakeExecutor{},
		clock:    &fakeClock{},
		session:  &Session{id: "test-session", isRunning: true},
	}

	cfg := DefaultConfig()
	cfg.AutoSelect = true
	if mutate != nil {
		mutate(&cfg)
	}

	rig.controller = NewController(cfg, Deps{
		Source:   rig.source,
		OCR:      rig.ocr,
		Analyzer: rig.analyzer,
		Oracle:   rig.oracle,
		Verifier: rig.verifier,
		Executor: rig.executor,
		Clock:    rig.clock,
		Report:   func(r Report) { rig.reports = append(rig.reports, r) },
	})
	return rig
}

// tick single-steps the loop and joins any spawned unit.
func (r *testRig) tick(ctx context.Context) {
	r.controller.tick(ctx, r.session)
	r.controller.unitWG.Wait()
}

const longText = "question one which planet is known as the red planet"

func singleChoiceResult(confidence float64) *types.AnalysisResult {
	return &types.AnalysisResult{
		HasQuestion: true,
		Questions: []types.QuestionRecord{{
			Type:         types.QuestionSingleChoice,
			QuestionText: "Which planet is known as the red planet?",
			Options: []types.OptionRecord{
				{Text: "Venus", IsCorrect: false, Confidence: 0.05},
				{Text: "Mars", IsCorrect: true, Confidence: confidence,
					Box: &types.BoundingBox{YMin: 0.4, XMin: 0.2, YMax: 0.5, XMax: 0.6}},
			},
			BoundingBox: types.BoundingBox{YMin: 0.1, XMin: 0.1, YMax: 0.6, XMax: 0.9},
		}},
		ModelUsed: "test-model",
		Attempts:  1,
	}
}

func TestChangeThreshold(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, changeThreshold(50), 1e-9)
	assert.InDelta(t, 0.8, changeThreshold(100), 1e-9)
	assert.InDelta(t, 0.26, changeThreshold(10), 1e-9)
	// Out-of-range sensitivity clamps.
	assert.InDelta(t, changeThreshold(1), changeThreshold(0), 1e-9)
	assert.InDelta(t, changeThreshold(100), changeThreshold(250), 1e-9)
}

func TestHybrid_TwoCandidatesThenResetDoesNotEscalate(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	ctx := context.Background()

	// Two candidate ticks (fresh session, long unfamiliar text).
	rig.ocr.texts = []string{longText, longText, "short"}
	rig.tick(ctx)
	rig.tick(ctx)
	// Non-candidate tick resets the counter before it reaches 3.
	rig.tick(ctx)

	assert.Equal(t, 0, rig.oracle.callCount(), "oracle must not be consulted")
	assert.Equal(t, 0, rig.session.stabilityCounter)
}

func TestHybrid_ThreeCandidatesEscalateExactlyOnce(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.analyzer.result = &types.AnalysisResult{HasQuestion: false}
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)
	rig.tick(ctx)
	assert.Equal(t, 2, rig.session.stabilityCounter)

	rig.tick(ctx)

	assert.Equal(t, 1, rig.oracle.callCount(), "exactly one escalation")
	assert.Equal(t, 0, rig.session.stabilityCounter, "counter resets after escalating")
	assert.Equal(t, textdiff.Normalize(longText), rig.session.observedText())

	// Same text again: similarity 1.0, no further escalation.
	rig.tick(ctx)
	assert.Equal(t, 1, rig.oracle.callCount())
}

func TestHybrid_FeedbackAddedSuppressesEscalation(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	ctx := context.Background()

	// Prior reference carries the grading feedback; the current frame shows
	// the bare question again. The texts are a subset pair, so no
	// escalation even though raw similarity is low.
	rig.session.lastObservedText = textdiff.Normalize(
		"Question: 2+2=? A) 3 B) 4 Correct! Well done, that was the right answer indeed")
	rig.ocr.texts = []string{"Question: 2+2=? A) 3 B) 4"}

	for i := 0; i < 5; i++ {
		rig.tick(ctx)
	}

	assert.Equal(t, 0, rig.oracle.callCount(), "subset relation must suppress escalation")
}

func TestHybrid_AppendedFeedbackSuppressesEscalation(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	ctx := context.Background()

	// Same pair in the other direction: feedback appears in the current
	// frame after the reference was taken.
	rig.session.lastObservedText = textdiff.Normalize("Question: 2+2=? A) 3 B) 4")
	rig.ocr.texts = []string{
		"Question: 2+2=? A) 3 B) 4 Correct! Well done, that was the right answer indeed",
	}

	for i := 0; i < 5; i++ {
		rig.tick(ctx)
	}

	assert.Equal(t, 0, rig.oracle.callCount())
}

func TestHybrid_ShortTextNeverCandidates(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	ctx := context.Background()

	// OCR failure degrades to "", which fails the length gate.
	rig.ocr.texts = []string{""}
	for i := 0; i < 5; i++ {
		rig.tick(ctx)
	}
	assert.Equal(t, 0, rig.oracle.callCount())
	assert.Equal(t, 0, rig.session.stabilityCounter)
}

func TestHybrid_BusySessionDropsTick(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.session.isBusy = true
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)

	assert.Equal(t, 0, rig.source.calls, "busy tick must skip before capturing")
	assert.Equal(t, 0, rig.session.stabilityCounter)
}

func TestHybrid_OracleNotNewSkipsAnalysis(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.oracle.verdicts = []*types.ChangeVerdict{{IsNew: false, Reason: "cosmetic change"}}
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)
	rig.tick(ctx)
	rig.tick(ctx)

	assert.Equal(t, 1, rig.oracle.callCount())
	assert.Equal(t, 0, rig.analyzer.callCount())
}

func TestHybrid_OracleErrorDoesNotBreakLoop(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.oracle.err = types.NewError(types.ErrUpstreamError, "boom")
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)
	rig.tick(ctx)
	rig.tick(ctx)

	assert.Equal(t, 0, rig.analyzer.callCount())
	assert.True(t, rig.session.Running(), "loop survives oracle failure")
	assert.False(t, rig.session.Busy(), "busy flag released")
}

func TestQuotaErrorDisablesMasterSwitch(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.analyzer.result = &types.AnalysisResult{
		Err: types.NewError(types.ErrQuotaExceeded, "quota exhausted"),
	}
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)
	rig.tick(ctx)
	rig.tick(ctx)

	assert.False(t, rig.controller.Enabled(), "quota exhaustion must disable automation")

	// Further ticks are inert.
	before := rig.source.calls
	rig.tick(ctx)
	assert.Equal(t, before, rig.source.calls)
}

func TestTimedMode_AnalyzesEveryTick(t *testing.T) {
	t.Parallel()

	rig := newRig(t, func(cfg *Config) {
		cfg.Mode = ModeTimed
		cfg.AutoSelect = false
	})
	ctx := context.Background()

	rig.tick(ctx)
	rig.tick(ctx)

	assert.Equal(t, 2, rig.analyzer.callCount())
	assert.Equal(t, 0, rig.oracle.callCount())
}

func TestRemoteMode_ConsultsOracleEveryTick(t *testing.T) {
	t.Parallel()

	rig := newRig(t, func(cfg *Config) {
		cfg.Mode = ModeRemote
		cfg.AutoSelect = false
	})
	rig.oracle.verdicts = []*types.ChangeVerdict{{IsNew: false}}
	ctx := context.Background()

	rig.tick(ctx)
	rig.tick(ctx)

	assert.Equal(t, 2, rig.oracle.callCount())
	assert.Equal(t, 0, rig.analyzer.callCount())
}

func TestStoppedSessionDiscardsInFlightResult(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.analyzer.result = singleChoiceResult(0.95)
	rig.analyzer.onCall = func() { rig.session.stop() }
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)
	rig.tick(ctx)
	rig.tick(ctx)

	assert.Nil(t, rig.controller.LastResult(), "result arriving after stop is discarded")
	assert.Empty(t, rig.executor.dispatched(), "no side effects after stop")
}

func TestFlaggedQuestionWithoutRecordsReportsNoAnswer(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.analyzer.result = &types.AnalysisResult{HasQuestion: true, ModelUsed: "test-model", Attempts: 1}
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)
	rig.tick(ctx)
	rig.tick(ctx)

	require.Len(t, rig.reports, 1)
	assert.Equal(t, ReportNoAnswer, rig.reports[0].Kind)
	assert.Empty(t, rig.executor.dispatched(), "nothing to click without a question record")
}

func TestPanickingUnitDoesNotKillLoop(t *testing.T) {
	t.Parallel()

	rig := newRig(t, func(cfg *Config) {
		cfg.Mode = ModeTimed
		cfg.AutoSelect = false
	})
	rig.analyzer.onCall = func() { panic("analyzer blew up") }
	ctx := context.Background()

	rig.tick(ctx)

	rig.analyzer.onCall = nil
	rig.tick(ctx)

	// A second analysis ran, so the panic neither escaped the unit nor
	// left the session stuck busy.
	assert.Equal(t, 2, rig.analyzer.callCount())
	assert.True(t, rig.session.Running())
}

func TestStopDuringSelectionSuppressesReport(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.analyzer.result = singleChoiceResult(0.95)
	rig.verifier.successAt = 1
	rig.executor.onDispatch = func() { rig.session.stop() }
	ctx := context.Background()

	rig.ocr.texts = []string{longText}
	rig.tick(ctx)
	rig.tick(ctx)
	rig.tick(ctx)

	assert.NotEmpty(t, rig.executor.dispatched(), "selection was underway when stop landed")
	assert.Empty(t, rig.reports, "terminal report is discarded after stop")
}

func TestStartRequiresMasterSwitch(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	rig.controller.Disable()

	err := rig.controller.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrSessionStopped, types.GetErrorCode(err))
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()

	rig := newRig(t, nil)
	ctx := context.Background()

	require.NoError(t, rig.controller.Start(ctx))
	session := rig.controller.Session()
	require.NotNil(t, session)
	assert.True(t, session.Running())
	assert.NotEmpty(t, session.ID())

	// Second start is a no-op while running.
	require.NoError(t, rig.controller.Start(ctx))
	assert.Same(t, session, rig.controller.Session())

	done := make(chan struct{})
	go func() {
		rig.controller.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.False(t, session.Running())
	assert.Equal(t, "", session.observedText())
}
