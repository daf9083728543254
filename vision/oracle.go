package vision

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/screenwise/screenwise/types"
)

// OracleConfig configures the remote change oracle.
type OracleConfig struct {
	Model string `yaml:"model"`
}

// DefaultOracleConfig returns the default oracle model.
func DefaultOracleConfig() OracleConfig {
	return OracleConfig{Model: "gemini-2.0-flash-lite"}
}

// Oracle asks the backend whether the current frame shows a materially new
// question versus a reference frame. One attempt, no retries: the verdict
// is advisory and the next tick re-evaluates anyway.
type Oracle struct {
	cfg     OracleConfig
	backend generator
	tracer  trace.Tracer
	logger  *zap.Logger
}

// NewOracle creates a change oracle.
func NewOracle(cfg OracleConfig, backend generator, logger *zap.Logger) *Oracle {
	return &Oracle{
		cfg:     cfg,
		backend: backend,
		tracer:  otel.Tracer("screenwise/vision"),
		logger:  logger.With(zap.String("component", "change_oracle")),
	}
}

// CheckChanged compares current against previous. previous may be nil on
// the first escalation of a session; the oracle then judges only whether
// the current frame shows a question at all.
func (o *Oracle) CheckChanged(ctx context.Context, current, previous *types.Frame) (*types.ChangeVerdict, error) {
	ctx, span := o.tracer.Start(ctx, "vision.check_changed")
	defer span.End()

	if current.Empty() {
		return nil, types.NewError(types.ErrInvalidRequest, "empty current frame")
	}

	parts := []genPart{}
	if !previous.Empty() {
		parts = append(parts, TextPart("First screenshot (previous reference):"), ImagePart(previous))
		parts = append(parts, TextPart("Second screenshot (current):"), ImagePart(current))
	} else {
		parts = append(parts, TextPart("There is no previous screenshot. Second screenshot (current):"), ImagePart(current))
	}
	parts = append(parts, TextPart("Does the second screenshot show a materially new question?"))

	completion, err := o.backend.Generate(ctx, GenerateRequest{
		Model:        o.cfg.Model,
		Parts:        parts,
		System:       oracleSystemPrompt,
		JSONResponse: true,
	})
	if err != nil {
		return nil, err
	}

	verdict, err := parseVerdict(completion)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Bool("is_new", verdict.IsNew))
	o.logger.Debug("change oracle verdict",
		zap.Bool("is_new", verdict.IsNew),
		zap.String("reason", verdict.Reason),
	)
	return verdict, nil
}
