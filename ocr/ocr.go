// Package ocr wraps the external text extractor. The core treats OCR as a
// best-effort collaborator: extraction failures degrade to an empty string
// and are never surfaced as errors past this boundary.
package ocr

import (
	"context"

	"github.com/screenwise/screenwise/types"
)

// TextExtractor pulls raw text out of a captured frame. Implementations
// return "" on any failure; the hybrid trigger treats empty text as
// "no signal".
type TextExtractor interface {
	Extract(ctx context.Context, frame *types.Frame) string
}

// ExtractorFunc adapts a function to the TextExtractor interface.
type ExtractorFunc func(ctx context.Context, frame *types.Frame) string

// Extract implements TextExtractor.
func (f ExtractorFunc) Extract(ctx context.Context, frame *types.Frame) string {
	return f(ctx, frame)
}

// Noop is a TextExtractor that always returns "". Used when no OCR engine
// is installed; hybrid mode then never fires locally and the configured
// trigger should be timed or remote instead.
type Noop struct{}

// Extract implements TextExtractor.
func (Noop) Extract(context.Context, *types.Frame) string { return "" }
