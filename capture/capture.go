// Package capture abstracts "get the current screen as an encoded still
// frame". The production source shells out to ffmpeg's screen grabbers;
// a directory-backed source exists for replay and tests.
package capture

import (
	"context"

	"github.com/screenwise/screenwise/types"
)

// FrameSource produces the current state of the monitored display as an
// encoded still image. Implementations must be safe for sequential reuse;
// the controller never calls Capture concurrently.
type FrameSource interface {
	Capture(ctx context.Context) (*types.Frame, error)
}

// FrameSourceFunc adapts a function to the FrameSource interface.
type FrameSourceFunc func(ctx context.Context) (*types.Frame, error)

// Capture implements FrameSource.
func (f FrameSourceFunc) Capture(ctx context.Context) (*types.Frame, error) {
	return f(ctx)
}
