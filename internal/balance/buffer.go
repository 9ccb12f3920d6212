package balance

import (
	"errors"
	"fmt"

	"github.com/finessevanes/ltad-coach-sub005/internal/pose"
)

// ErrOutOfOrder is returned when a frame does not advance the timeline. The
// buffer never reorders or silently drops frames.
var ErrOutOfOrder = errors.New("balance: frame timestamp not increasing")

// FrameBuffer stores the ordered frame history for one session. Pure append:
// no side effects beyond storage. Low-confidence frames are retained for
// completeness but counted separately so numeric consumers can skip them.
type FrameBuffer struct {
	frames        []pose.Frame
	lowConfidence int
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Append adds one frame. Timestamps must be strictly increasing.
func (b *FrameBuffer) Append(f pose.Frame) error {
	if n := len(b.frames); n > 0 && f.Timestamp <= b.frames[n-1].Timestamp {
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, f.Timestamp, b.frames[n-1].Timestamp)
	}
	b.frames = append(b.frames, f)
	if f.LowConfidence {
		b.lowConfidence++
	}
	return nil
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int { return len(b.frames) }

// LowConfidence returns how many buffered frames were tagged low-confidence.
func (b *FrameBuffer) LowConfidence() int { return b.lowConfidence }

// Last returns the most recent frame, if any.
func (b *FrameBuffer) Last() (pose.Frame, bool) {
	if len(b.frames) == 0 {
		return pose.Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}

// Frames returns a copy of the buffered history.
func (b *FrameBuffer) Frames() []pose.Frame {
	out := make([]pose.Frame, len(b.frames))
	copy(out, b.frames)
	return out
}
