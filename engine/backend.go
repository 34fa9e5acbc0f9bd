package engine

import (
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/ngeltman/music-pitch-app/media"
)

// Mode identifies which kind of backend is active.
type Mode int

const (
	// ModeNone means no backend is loaded.
	ModeNone Mode = iota
	// ModeLocal means a fully-buffered local file is loaded.
	ModeLocal
	// ModeStream means a live network stream is loaded.
	ModeStream
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeStream:
		return "stream"
	default:
		return "none"
	}
}

// backend is the mode-specific playback implementation behind the
// engine. The engine owns exactly one at a time and dispatches every
// transport and parameter operation through this interface, so callers
// never branch on mode.
//
// SetRate, SetDetune, Seek and Position must be called with the output
// locked once the backend's streamer is wired to the device.
type backend interface {
	Streamer() beep.Streamer
	SampleRate() beep.SampleRate
	SetRate(rate float64)
	SetDetune(cents float64)
	Position() time.Duration
	Seek(t time.Duration) error
	Duration() time.Duration
	Dispose()
}

// MediaHandle is the part of a live streaming element the stream backend
// drives. *media.Element is the production implementation.
type MediaHandle interface {
	Events() <-chan media.Event
	Done() <-chan struct{}
	Streamer() beep.Streamer
	Format() beep.Format
	Duration() time.Duration
	SetRate(rate float64)
	Position() time.Duration
	Seek(t time.Duration) error
	Close() error
}

var _ MediaHandle = (*media.Element)(nil)
