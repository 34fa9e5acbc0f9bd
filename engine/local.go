package engine

import (
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/ngeltman/music-pitch-app/dsp"
)

// localBackend plays a fully-decoded buffer through a grain player. The
// buffer is immutable once decoded; the grain player is the only thing
// reading from it and is released on Dispose.
type localBackend struct {
	buffer   *beep.Buffer
	player   *dsp.GrainPlayer
	format   beep.Format
	disposed bool
}

func newLocalBackend(buffer *beep.Buffer, format beep.Format) *localBackend {
	return &localBackend{
		buffer: buffer,
		player: dsp.NewGrainPlayer(buffer.Streamer(0, buffer.Len())),
		format: format,
	}
}

func (b *localBackend) Streamer() beep.Streamer { return b.player }

func (b *localBackend) SampleRate() beep.SampleRate { return b.format.SampleRate }

func (b *localBackend) SetRate(rate float64) {
	if !b.disposed {
		b.player.SetRate(rate)
	}
}

// SetDetune applies the offset in raw cents; the grain player consumes
// cents directly.
func (b *localBackend) SetDetune(cents float64) {
	if !b.disposed {
		b.player.SetDetune(cents)
	}
}

func (b *localBackend) Position() time.Duration {
	if b.disposed {
		return 0
	}
	return b.format.SampleRate.D(b.player.Position())
}

func (b *localBackend) Seek(t time.Duration) error {
	if b.disposed {
		return nil
	}
	return b.player.Seek(b.format.SampleRate.N(t))
}

func (b *localBackend) Duration() time.Duration {
	if b.disposed {
		return 0
	}
	return b.format.SampleRate.D(b.buffer.Len())
}

// Dispose releases the grain player and the decoded buffer. The engine
// has already detached the streamer from the output by the time this
// runs.
func (b *localBackend) Dispose() {
	b.disposed = true
	b.player = nil
	b.buffer = nil
}
