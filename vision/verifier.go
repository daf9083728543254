package vision

import (
	"context"

	"go.uber.org/zap"

	"github.com/screenwise/screenwise/types"
)

// VerifierConfig configures the selection verifier.
type VerifierConfig struct {
	Model string `yaml:"model"`
}

// DefaultVerifierConfig returns the default verifier model.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{Model: "gemini-2.0-flash-lite"}
}

// Verifier re-observes the screen after a dispatched click and judges
// whether the target option is now visually selected. This is the only
// feedback channel of the action arm: the bridge itself never confirms.
type Verifier struct {
	cfg     VerifierConfig
	backend generator
	logger  *zap.Logger
}

// NewVerifier creates a selection verifier.
func NewVerifier(cfg VerifierConfig, backend generator, logger *zap.Logger) *Verifier {
	return &Verifier{
		cfg:     cfg,
		backend: backend,
		logger:  logger.With(zap.String("component", "verifier")),
	}
}

// Confirm reports whether optionText appears selected in the frame.
func (v *Verifier) Confirm(ctx context.Context, frame *types.Frame, optionText string) (bool, error) {
	if frame.Empty() {
		return false, types.NewError(types.ErrInvalidRequest, "empty frame")
	}

	completion, err := v.backend.Generate(ctx, GenerateRequest{
		Model: v.cfg.Model,
		Parts: []genPart{
			ImagePart(frame),
			TextPart("Answer option to check: " + optionText),
		},
		System:       verifySystemPrompt,
		JSONResponse: true,
	})
	if err != nil {
		return false, err
	}

	selected, err := parseSelected(completion)
	if err != nil {
		return false, err
	}

	v.logger.Debug("selection verification",
		zap.String("option", optionText),
		zap.Bool("selected", selected),
	)
	return selected, nil
}
