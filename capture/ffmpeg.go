package capture

import (
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/screenwise/screenwise/types"
)

// FFmpegSource grabs single screen frames by invoking ffmpeg with the
// platform's screen-capture input device (x11grab on Linux, avfoundation
// on macOS, gdigrab on Windows) and reading one mjpeg frame from stdout.
type FFmpegSource struct {
	binary  string
	display string
	timeout time.Duration
	logger  *zap.Logger
}

// FFmpegOption customizes an FFmpegSource.
type FFmpegOption func(*FFmpegSource)

// WithBinary overrides the ffmpeg binary path.
func WithBinary(path string) FFmpegOption {
	return func(s *FFmpegSource) { s.binary = path }
}

// WithDisplay sets the capture device/display identifier
// (e.g. ":0.0" for x11grab, "1" for avfoundation).
func WithDisplay(display string) FFmpegOption {
	return func(s *FFmpegSource) { s.display = display }
}

// WithTimeout bounds a single grab.
func WithTimeout(d time.Duration) FFmpegOption {
	return func(s *FFmpegSource) { s.timeout = d }
}

// NewFFmpegSource creates a screen-grab source.
func NewFFmpegSource(logger *zap.Logger, opts ...FFmpegOption) *FFmpegSource {
	s := &FFmpegSource{
		binary:  "ffmpeg",
		display: defaultDisplay(),
		timeout: 5 * time.Second,
		logger:  logger.With(zap.String("component", "capture")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capture grabs one frame of the display as a JPEG.
func (s *FFmpegSource) Capture(ctx context.Context) (*types.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	args := append(grabArgs(s.display),
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)

	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		s.logger.Warn("screen grab failed",
			zap.Error(err),
			zap.String("stderr", truncate(stderr.String(), 512)),
		)
		return nil, types.NewError(types.ErrCaptureFailed, "ffmpeg screen grab failed").WithCause(err)
	}

	if stdout.Len() == 0 {
		return nil, types.NewError(types.ErrCaptureFailed, "ffmpeg produced no frame data")
	}

	s.logger.Debug("frame captured",
		zap.Int("bytes", stdout.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &types.Frame{
		Data:       stdout.Bytes(),
		MimeType:   "image/jpeg",
		CapturedAt: time.Now(),
	}, nil
}

func grabArgs(display string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-capture_cursor", "1", "-i", display}
	case "windows":
		return []string{"-f", "gdigrab", "-i", display}
	default:
		return []string{"-f", "x11grab", "-i", display}
	}
}

func defaultDisplay() string {
	switch runtime.GOOS {
	case "darwin":
		return "1"
	case "windows":
		return "desktop"
	default:
		return ":0.0"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ FrameSource = (*FFmpegSource)(nil)
