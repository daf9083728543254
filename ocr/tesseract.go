package ocr

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/screenwise/screenwise/types"
)

// Tesseract shells out to the tesseract CLI, feeding the frame via stdin
// and reading recognized text from stdout.
type Tesseract struct {
	binary    string
	languages []string
	psm       string
	timeout   time.Duration
	logger    *zap.Logger
}

// TesseractOption customizes a Tesseract extractor.
type TesseractOption func(*Tesseract)

// WithTesseractBinary overrides the tesseract binary path.
func WithTesseractBinary(path string) TesseractOption {
	return func(t *Tesseract) { t.binary = path }
}

// WithLanguages sets language hints (joined with "+").
func WithLanguages(langs ...string) TesseractOption {
	return func(t *Tesseract) { t.languages = langs }
}

// WithPageSegMode sets the tesseract page segmentation mode.
func WithPageSegMode(psm string) TesseractOption {
	return func(t *Tesseract) { t.psm = psm }
}

// WithTimeout bounds a single extraction.
func WithTimeout(d time.Duration) TesseractOption {
	return func(t *Tesseract) { t.timeout = d }
}

// NewTesseract creates a tesseract-backed extractor.
func NewTesseract(logger *zap.Logger, opts ...TesseractOption) *Tesseract {
	t := &Tesseract{
		binary:    "tesseract",
		languages: []string{"eng"},
		psm:       "3",
		timeout:   10 * time.Second,
		logger:    logger.With(zap.String("component", "ocr")),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Extract runs tesseract over the frame. Any failure is logged and
// degraded to "".
func (t *Tesseract) Extract(ctx context.Context, frame *types.Frame) string {
	if frame.Empty() {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{"stdin", "stdout", "-l", strings.Join(t.languages, "+"), "--psm", t.psm}
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdin = bytes.NewReader(frame.Data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.logger.Warn("text extraction failed",
			zap.Error(err),
			zap.String("stderr", firstLine(stderr.String())),
		)
		return ""
	}

	return strings.TrimSpace(stdout.String())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ TextExtractor = (*Tesseract)(nil)
