package automation

import (
	"context"
	"sync"
	"time"

	"github.com/screenwise/screenwise/actions"
	"github.com/screenwise/screenwise/types"
)

// Scripted collaborator fakes. All of them record calls so tests can
// assert exact counts.

type fakeSource struct {
	mu     sync.Mutex
	frames []*types.Frame
	calls  int
}

func (f *fakeSource) Capture(context.Context) (*types.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.frames) == 0 {
		return &types.Frame{Data: []byte("frame"), MimeType: "image/jpeg"}, nil
	}
	frame := f.frames[0]
	if len(f.frames) > 1 {
		f.frames = f.frames[1:]
	}
	return frame, nil
}

type fakeOCR struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (f *fakeOCR) Extract(context.Context, *types.Frame) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.texts) == 0 {
		return ""
	}
	text := f.texts[0]
	if len(f.texts) > 1 {
		f.texts = f.texts[1:]
	}
	return text
}

type fakeOracle struct {
	mu       sync.Mutex
	verdicts []*types.ChangeVerdict
	err      error
	calls    int
}

func (f *fakeOracle) CheckChanged(_ context.Context, _, _ *types.Frame) (*types.ChangeVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.verdicts) == 0 {
		return &types.ChangeVerdict{IsNew: true}, nil
	}
	v := f.verdicts[0]
	if len(f.verdicts) > 1 {
		f.verdicts = f.verdicts[1:]
	}
	return v, nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	result *types.AnalysisResult
	calls  int
	onCall func()
}

func (f *fakeAnalyzer) Analyze(context.Context, *types.Frame) *types.AnalysisResult {
	f.mu.Lock()
	f.calls++
	hook := f.onCall
	result := f.result
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if result == nil {
		return &types.AnalysisResult{HasQuestion: false}
	}
	return result
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeVerifier struct {
	mu        sync.Mutex
	successAt int // attempt index (1-based) that verifies; 0 = never
	calls     int
	err       error
}

func (f *fakeVerifier) Confirm(_ context.Context, _ *types.Frame, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.successAt > 0 && f.calls >= f.successAt, nil
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExecutor struct {
	mu         sync.Mutex
	sequences  [][]actions.Action
	err        error
	onDispatch func()
}

func (f *fakeExecutor) Dispatch(_ context.Context, sequence []actions.Action) error {
	f.mu.Lock()
	f.sequences = append(f.sequences, sequence)
	hook := f.onDispatch
	err := f.err
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeExecutor) dispatched() [][]actions.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]actions.Action(nil), f.sequences...)
}

// fakeClock never fires its timer channel and sleeps instantly, so tests
// single-step ticks by calling tick directly.
type fakeClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *fakeClock) Now() time.Time { return time.Unix(1700000000, 0) }

func (f *fakeClock) After(time.Duration) <-chan time.Time {
	return make(chan time.Time)
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}
