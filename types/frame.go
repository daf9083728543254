package types

import "time"

// Frame is one captured still image of the monitored display. Frames are
// ephemeral: the controller keeps at most two references (current and the
// previous analysis reference), never persisting the bytes.
type Frame struct {
	Data       []byte    // encoded image bytes
	MimeType   string    // e.g. "image/jpeg"
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image data.
func (f *Frame) Empty() bool {
	return f == nil || len(f.Data) == 0
}
