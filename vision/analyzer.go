package vision

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/screenwise/screenwise/types"
)

// generator is the minimal surface the analyzer needs from the backend
// client. Kept private so tests can script completions.
type generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// AnalyzerConfig configures retry, fallback, and rate limiting for
// analysis calls.
type AnalyzerConfig struct {
	Model         string        `yaml:"model"`
	FallbackModel string        `yaml:"fallback_model"`
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	Multiplier    float64       `yaml:"multiplier"`
	// RequestsPerMinute caps outbound analysis calls on top of the
	// controller's single-flight guarantee. 0 disables the limiter.
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// DefaultAnalyzerConfig returns the default analysis policy.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Model:             "gemini-2.0-flash",
		FallbackModel:     "gemini-2.0-flash-lite",
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          30 * time.Second,
		Multiplier:        2.0,
		RequestsPerMinute: 30,
	}
}

// AnalyzeOptions carries the optional extras of one analysis call.
type AnalyzeOptions struct {
	// ModelHint overrides the configured primary model for this call.
	ModelHint string
	// AuxText is OCR text forwarded as a hint alongside the image.
	AuxText string
	// Attachments are user-supplied context items.
	Attachments []Attachment
	// Instructions is free-form user guidance appended to the task prompt.
	Instructions string
}

// Analyzer detects and solves questions in a frame. It owns the full
// retry policy: bounded attempts with exponential backoff, downgrade to
// the fallback model on overload or repeated failure, and a relaxed
// transcription-only probe after exhaustion so the logs can distinguish
// "refuses to solve" from "cannot see the content".
type Analyzer struct {
	cfg     AnalyzerConfig
	backend generator
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewAnalyzer creates an analyzer over the given backend client.
func NewAnalyzer(cfg AnalyzerConfig, backend generator, logger *zap.Logger) *Analyzer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 2.0
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute)
	}

	return &Analyzer{
		cfg:     cfg,
		backend: backend,
		limiter: limiter,
		tracer:  otel.Tracer("screenwise/vision"),
		logger:  logger.With(zap.String("component", "analyzer")),
	}
}

// Analyze runs the full analysis policy over one frame. The returned
// result is never nil; on failure its Err field carries the terminal typed
// error for this call. Callers must not retry — the policy here already
// did.
func (a *Analyzer) Analyze(ctx context.Context, frame *types.Frame, opts AnalyzeOptions) *types.AnalysisResult {
	ctx, span := a.tracer.Start(ctx, "vision.analyze")
	defer span.End()

	if frame.Empty() {
		return errResult(types.NewError(types.ErrInvalidRequest, "empty frame"), "", 0)
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return errResult(types.NewError(types.ErrSessionStopped, "rate limiter wait canceled").WithCause(err), "", 0)
		}
	}

	model := a.cfg.Model
	if opts.ModelHint != "" {
		model = opts.ModelHint
	}

	parts := a.buildParts(frame, opts)

	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := a.backoffDelay(attempt)
			a.logger.Debug("retrying analysis",
				zap.Int("attempt", attempt),
				zap.String("model", model),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return errResult(types.NewError(types.ErrSessionStopped, "analysis canceled").WithCause(ctx.Err()), model, attempt-1)
			case <-time.After(delay):
			}
		}

		completion, err := a.backend.Generate(ctx, GenerateRequest{
			Model:        model,
			Parts:        parts,
			System:       analyzeSystemPrompt,
			JSONResponse: true,
		})
		if err == nil {
			result, perr := parseAnalysis(completion)
			if perr == nil {
				result.ModelUsed = model
				result.Attempts = attempt
				span.SetAttributes(
					attribute.String("model", model),
					attribute.Int("attempts", attempt),
					attribute.Bool("has_question", result.HasQuestion),
				)
				return result
			}
			err = perr
		}
		lastErr = err

		if !types.IsRetryable(err) {
			// Quota and auth failures are terminal immediately; burning the
			// remaining attempts would only repeat the same answer.
			a.logger.Warn("analysis failed with terminal error",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return errResult(asTypedError(err), model, attempt)
		}

		// Overload or repeated transient failure: downgrade to the fallback
		// model for the remaining attempts.
		if a.cfg.FallbackModel != "" && model != a.cfg.FallbackModel &&
			(types.GetErrorCode(err) == types.ErrModelOverloaded || attempt >= a.cfg.MaxAttempts-1) {
			a.logger.Info("downgrading to fallback model",
				zap.String("from", model),
				zap.String("to", a.cfg.FallbackModel),
				zap.Error(err),
			)
			model = a.cfg.FallbackModel
		}
	}

	a.logger.Warn("analysis attempts exhausted",
		zap.Int("attempts", a.cfg.MaxAttempts),
		zap.Error(lastErr),
	)
	a.probeTranscription(ctx, frame, model)

	return errResult(asTypedError(lastErr), model, a.cfg.MaxAttempts)
}

// buildParts assembles the request parts: frame, OCR hint, attachments,
// then the task prompt with user instructions.
func (a *Analyzer) buildParts(frame *types.Frame, opts AnalyzeOptions) []genPart {
	parts := []genPart{ImagePart(frame)}

	if opts.AuxText != "" {
		parts = append(parts, TextPart("Text extracted from the screenshot by OCR (may contain errors):\n"+opts.AuxText))
	}
	for _, att := range opts.Attachments {
		if part, ok := att.toPart(); ok {
			parts = append(parts, part)
		}
	}

	task := analyzeTaskPrompt
	if opts.Instructions != "" {
		task += "\nAdditional instructions from the user:\n" + opts.Instructions
	}
	parts = append(parts, TextPart(task))
	return parts
}

// probeTranscription fires the relaxed final probe. The outcome is logged
// only; by this point the call has already failed.
func (a *Analyzer) probeTranscription(ctx context.Context, frame *types.Frame, model string) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	text, err := a.backend.Generate(probeCtx, GenerateRequest{
		Model: model,
		Parts: []genPart{ImagePart(frame), TextPart(transcribeProbePrompt)},
	})
	switch {
	case err != nil:
		a.logger.Warn("transcription probe failed: model cannot see content", zap.Error(err))
	case len(text) < 10:
		a.logger.Warn("transcription probe returned almost nothing", zap.Int("length", len(text)))
	default:
		a.logger.Info("transcription probe succeeded: model sees content but did not produce an analysis",
			zap.Int("length", len(text)),
		)
	}
}

// backoffDelay computes the exponential backoff with ±25% jitter.
func (a *Analyzer) backoffDelay(attempt int) time.Duration {
	delay := float64(a.cfg.InitialDelay) * math.Pow(a.cfg.Multiplier, float64(attempt-2))
	if delay > float64(a.cfg.MaxDelay) {
		delay = float64(a.cfg.MaxDelay)
	}
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	if delay < float64(a.cfg.InitialDelay) {
		delay = float64(a.cfg.InitialDelay)
	}
	return time.Duration(delay)
}

func errResult(err *types.Error, model string, attempts int) *types.AnalysisResult {
	return &types.AnalysisResult{Err: err, ModelUsed: model, Attempts: attempts}
}

func asTypedError(err error) *types.Error {
	if typed, ok := err.(*types.Error); ok {
		return typed
	}
	return types.NewError(types.ErrInternalError, "analysis failed").WithCause(err)
}
