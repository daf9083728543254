// Package automation contains the control loop at the heart of the
// assistant: the change-detection scheduler that decides when a frame is
// worth a remote analysis, and the answer-selection protocol that drives
// click, verify, retry, and advance across the extension bridge.
package automation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/screenwise/screenwise/actions"
	"github.com/screenwise/screenwise/capture"
	"github.com/screenwise/screenwise/ocr"
	"github.com/screenwise/screenwise/textdiff"
	"github.com/screenwise/screenwise/types"
)

// TriggerMode selects the change-detection strategy. Modes are mutually
// exclusive; the loop runs exactly one.
type TriggerMode string

const (
	// ModeTimed runs a full analysis every tick, no gating.
	ModeTimed TriggerMode = "timed"
	// ModeRemote asks the change oracle on every tick.
	ModeRemote TriggerMode = "remote"
	// ModeHybrid gates the oracle behind the local text-diff pre-filter.
	ModeHybrid TriggerMode = "hybrid"
)

// Config tunes the scheduling loop and the selection protocol.
type Config struct {
	Mode     TriggerMode   `yaml:"mode"`
	Interval time.Duration `yaml:"interval"`

	// Sensitivity in [1,100] feeds the adaptive similarity threshold
	// 0.2 + 0.6*(sensitivity/100): higher means stricter about what counts
	// as a new question.
	Sensitivity        int `yaml:"sensitivity"`
	StabilityThreshold int `yaml:"stability_threshold"`
	MinTextLength      int `yaml:"min_text_length"`

	AutoSelect          bool          `yaml:"auto_select"`
	AutoAdvance         bool          `yaml:"auto_advance"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	MaxSelectAttempts   int           `yaml:"max_select_attempts"`
	SettleDelay         time.Duration `yaml:"settle_delay"`
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeHybrid,
		Interval:            time.Second,
		Sensitivity:         50,
		StabilityThreshold:  3,
		MinTextLength:       15,
		AutoSelect:          false,
		AutoAdvance:         false,
		ConfidenceThreshold: 0.7,
		MaxSelectAttempts:   5,
		SettleDelay:         2 * time.Second,
	}
}

// changeThreshold computes the adaptive similarity threshold. The constants
// are empirical; recalibrating them changes what counts as "changed".
func changeThreshold(sensitivity int) float64 {
	if sensitivity < 1 {
		sensitivity = 1
	}
	if sensitivity > 100 {
		sensitivity = 100
	}
	return 0.2 + 0.6*float64(sensitivity)/100
}

// Analyzer is the full-analysis collaborator. The returned result is never
// nil; a failed call carries its terminal error in the Err field.
type Analyzer interface {
	Analyze(ctx context.Context, frame *types.Frame) *types.AnalysisResult
}

// ChangeOracle is the authoritative remote change check.
type ChangeOracle interface {
	CheckChanged(ctx context.Context, current, previous *types.Frame) (*types.ChangeVerdict, error)
}

// Verifier re-observes the screen and reports whether an option appears
// selected.
type Verifier interface {
	Confirm(ctx context.Context, frame *types.Frame, optionText string) (bool, error)
}

// Metrics receives loop observations. Implementations must be safe for
// concurrent use; a nil Metrics in Deps disables collection.
type Metrics interface {
	TickDropped()
	CandidateChange()
	Escalation(isNew bool)
	AnalysisObserved(outcome string, elapsed time.Duration)
	DispatchSent(n int)
	VerificationObserved(ok bool)
}

// Recorder persists analysis and selection outcomes. Nil disables it.
type Recorder interface {
	RecordAnalysis(sessionID string, result *types.AnalysisResult)
	RecordSelection(sessionID string, report Report)
}

// Deps are the controller's collaborators. Source, OCR, Analyzer, Oracle,
// Verifier, and Executor are required for the modes that use them.
type Deps struct {
	Source   capture.FrameSource
	OCR      ocr.TextExtractor
	Analyzer Analyzer
	Oracle   ChangeOracle
	Verifier Verifier
	Executor actions.Executor

	Clock    Clock
	Metrics  Metrics
	Recorder Recorder
	Report   ReportFunc
	Logger   *zap.Logger
}

// Controller owns the scheduling loop and the action arm. One controller
// drives at most one session at a time.
type Controller struct {
	cfg  Config
	deps Deps

	// enabled is the automation master switch. Quota exhaustion flips it
	// off to stop runaway billing; the user flips it back explicitly.
	enabled atomic.Bool

	mu      sync.Mutex
	session *Session
	cancel  context.CancelFunc

	loopWG sync.WaitGroup
	unitWG sync.WaitGroup

	lastResult atomic.Pointer[types.AnalysisResult]

	logger *zap.Logger
}

// NewController wires a controller. Missing optional deps (Clock, Metrics,
// Recorder, Report, Logger) get no-op defaults.
func NewController(cfg Config, deps Deps) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.StabilityThreshold <= 0 {
		cfg.StabilityThreshold = 3
	}
	if cfg.MaxSelectAttempts <= 0 {
		cfg.MaxSelectAttempts = 5
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeHybrid
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	c := &Controller{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(zap.String("component", "automation")),
	}
	c.enabled.Store(true)
	return c
}

// Enabled reports the master switch state.
func (c *Controller) Enabled() bool { return c.enabled.Load() }

// Enable arms the master switch. It does not start a session.
func (c *Controller) Enable() { c.enabled.Store(true) }

// Disable flips the master switch off and tears down any running session.
// Unlike Stop it does not wait for in-flight units; their results are
// discarded because the session is no longer running.
func (c *Controller) Disable() {
	c.enabled.Store(false)
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.session != nil {
		c.session.stop()
	}
	c.mu.Unlock()
	c.logger.Warn("automation master switch disabled")
}

// LastResult returns the most recent successful analysis, or nil. Safe for
// concurrent readers; the loop is the single writer.
func (c *Controller) LastResult() *types.AnalysisResult {
	return c.lastResult.Load()
}

// Session returns the active session, or nil when stopped.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Start arms the scheduling loop. It fails when the master switch is off
// and is a no-op when a session is already running.
func (c *Controller) Start(ctx context.Context) error {
	if !c.enabled.Load() {
		return types.NewError(types.ErrSessionStopped, "automation master switch is off")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.Running() {
		return nil
	}

	session := &Session{id: uuid.NewString(), isRunning: true}
	loopCtx, cancel := context.WithCancel(ctx)
	c.session = session
	c.cancel = cancel

	c.logger.Info("automation loop starting",
		zap.String("session_id", session.id),
		zap.String("mode", string(c.cfg.Mode)),
		zap.Duration("interval", c.cfg.Interval),
	)

	c.loopWG.Add(1)
	go c.run(loopCtx, session)
	return nil
}

// Stop disarms the loop, cancels the pending tick, and waits for the loop
// goroutine and any in-flight unit to wind down. In-flight remote calls
// complete but their results are discarded.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.session != nil {
		c.session.stop()
	}
	c.mu.Unlock()

	c.loopWG.Wait()
	c.unitWG.Wait()
	c.logger.Info("automation loop stopped")
}

// run is the cooperative scheduling loop: each iteration arms one timer
// and handles one tick; the successor is armed only after the tick's
// synchronous part returns.
func (c *Controller) run(ctx context.Context, session *Session) {
	defer c.loopWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.deps.Clock.After(c.cfg.Interval):
			c.tick(ctx, session)
		}
	}
}

// tick is one logical unit of scheduling work. Collaborator failures are
// logged and absorbed here; nothing unwinds past the tick boundary.
func (c *Controller) tick(ctx context.Context, session *Session) {
	if !c.enabled.Load() || !session.Running() {
		return
	}

	switch c.cfg.Mode {
	case ModeTimed:
		c.spawnUnit(ctx, session, func(unitCtx context.Context) {
			frame, err := c.deps.Source.Capture(unitCtx)
			if err != nil {
				c.logger.Warn("capture failed", zap.Error(err))
				return
			}
			session.setAnalyzedFrame(frame)
			c.analyzeAndAct(unitCtx, session, frame)
		})
	case ModeRemote:
		c.spawnUnit(ctx, session, func(unitCtx context.Context) {
			frame, err := c.deps.Source.Capture(unitCtx)
			if err != nil {
				c.logger.Warn("capture failed", zap.Error(err))
				return
			}
			c.consultOracle(unitCtx, session, frame)
		})
	default: // ModeHybrid
		c.hybridTick(ctx, session)
	}
}

// hybridTick runs the local pre-filter synchronously and escalates to the
// oracle only after the stability debounce trips.
func (c *Controller) hybridTick(ctx context.Context, session *Session) {
	if session.Busy() {
		c.deps.Metrics.TickDropped()
		return
	}

	frame, err := c.deps.Source.Capture(ctx)
	if err != nil {
		c.logger.Warn("capture failed", zap.Error(err))
		return
	}

	raw := c.deps.OCR.Extract(ctx, frame)
	text := textdiff.Normalize(raw)
	last := session.observedText()

	if !c.isCandidateChange(text, last) {
		session.resetStability()
		return
	}

	c.deps.Metrics.CandidateChange()
	if !session.bumpStability(c.cfg.StabilityThreshold) {
		return
	}

	// Debounce tripped: this change is real. Update the local reference and
	// ask the authoritative oracle.
	session.setObservedText(text)
	c.spawnUnit(ctx, session, func(unitCtx context.Context) {
		c.consultOracle(unitCtx, session, frame)
	})
}

// isCandidateChange applies the raw candidate-change predicate: enough
// text, not explained by occlusion or appended feedback, and similarity
// below the adaptive threshold. An empty reference (fresh session) counts
// as a candidate so the first question on screen still escalates.
func (c *Controller) isCandidateChange(text, last string) bool {
	if len(text) <= c.cfg.MinTextLength {
		return false
	}
	if last == "" {
		return true
	}

	isMouseCovering := textdiff.IsSubset(last, text)
	isFeedbackAdded := textdiff.IsSubset(text, last)
	similarity := textdiff.Similarity(text, last)
	threshold := changeThreshold(c.cfg.Sensitivity)

	c.logger.Debug("local change check",
		zap.Float64("similarity", similarity),
		zap.Float64("threshold", threshold),
		zap.Bool("mouse_covering", isMouseCovering),
		zap.Bool("feedback_added", isFeedbackAdded),
	)

	return !isMouseCovering && !isFeedbackAdded && similarity < threshold
}

// spawnUnit runs one remote unit of work on its own goroutine, guarded by
// the busy flag. Overlapping ticks are dropped, never queued.
func (c *Controller) spawnUnit(ctx context.Context, session *Session, unit func(context.Context)) {
	if !session.tryAcquire() {
		c.deps.Metrics.TickDropped()
		return
	}
	c.unitWG.Add(1)
	go func() {
		defer c.unitWG.Done()
		defer session.release()
		defer func() {
			if r := recover(); r != nil {
				// A panicking unit must not take the loop down with it.
				c.logger.Error("recovered panic in scheduled unit",
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
			}
		}()
		unit(ctx)
	}()
}

// consultOracle asks the remote change oracle and runs a full analysis
// when it reports a materially new question.
func (c *Controller) consultOracle(ctx context.Context, session *Session, frame *types.Frame) {
	verdict, err := c.deps.Oracle.CheckChanged(ctx, frame, session.analyzedFrame())
	if err != nil {
		// Advisory check: log and wait for the next tick.
		c.logger.Warn("change oracle failed", zap.Error(err))
		return
	}

	c.deps.Metrics.Escalation(verdict.IsNew)
	if !verdict.IsNew {
		c.logger.Debug("oracle: no new question", zap.String("reason", verdict.Reason))
		return
	}
	if !session.Running() {
		return
	}

	session.setAnalyzedFrame(frame)
	c.analyzeAndAct(ctx, session, frame)
}

// analyzeAndAct runs the full analysis and, when enabled, the selection
// protocol. Results arriving after the session stopped are discarded.
func (c *Controller) analyzeAndAct(ctx context.Context, session *Session, frame *types.Frame) {
	start := c.deps.Clock.Now()
	result := c.deps.Analyzer.Analyze(ctx, frame)
	elapsed := c.deps.Clock.Now().Sub(start)

	if !session.Running() {
		c.logger.Debug("discarding analysis result: session stopped")
		return
	}

	if result.Err != nil {
		c.deps.Metrics.AnalysisObserved(string(result.Err.Code), elapsed)
		c.logger.Error("analysis failed",
			zap.String("code", string(result.Err.Code)),
			zap.String("model", result.ModelUsed),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.Err),
		)
		if c.deps.Recorder != nil {
			c.deps.Recorder.RecordAnalysis(session.ID(), result)
		}
		if types.IsQuotaExhausted(result.Err) {
			// Fail-safe: repeated billable failures must not keep firing.
			c.Disable()
		}
		return
	}

	c.deps.Metrics.AnalysisObserved("ok", elapsed)
	c.lastResult.Store(result)
	if c.deps.Recorder != nil {
		c.deps.Recorder.RecordAnalysis(session.ID(), result)
	}

	c.logger.Info("analysis completed",
		zap.Bool("has_question", result.HasQuestion),
		zap.Int("questions", len(result.Questions)),
		zap.String("model", result.ModelUsed),
		zap.Int("attempts", result.Attempts),
	)

	if !result.HasQuestion || !c.cfg.AutoSelect {
		return
	}
	if len(result.Questions) == 0 {
		// The model can flag a question without returning a usable record.
		c.emitReport(session, Report{
			Kind:   ReportNoAnswer,
			Detail: "analysis flagged a question but returned no question records",
		})
		return
	}

	report := c.selectAnswer(ctx, session, &result.Questions[0])
	if !session.Running() {
		c.logger.Debug("discarding selection report: session stopped")
		return
	}
	c.emitReport(session, report)
}

// emitReport fans a selection report out to the log, the report callback,
// and the history recorder.
func (c *Controller) emitReport(session *Session, report Report) {
	c.logger.Info("selection outcome",
		zap.String("kind", string(report.Kind)),
		zap.String("question", report.QuestionText),
		zap.String("option", report.OptionText),
		zap.Int("attempts", report.Attempts),
		zap.String("detail", report.Detail),
	)
	if c.deps.Report != nil {
		c.deps.Report(report)
	}
	if c.deps.Recorder != nil {
		c.deps.Recorder.RecordSelection(session.ID(), report)
	}
}

type noopMetrics struct{}

func (noopMetrics) TickDropped()                           {}
func (noopMetrics) CandidateChange()                       {}
func (noopMetrics) Escalation(bool)                        {}
func (noopMetrics) AnalysisObserved(string, time.Duration) {}
func (noopMetrics) DispatchSent(int)                       {}
func (noopMetrics) VerificationObserved(bool)              {}
