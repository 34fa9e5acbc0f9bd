package engine

import (
	"context"
	"errors"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/ngeltman/music-pitch-app/dsp"
	"github.com/ngeltman/music-pitch-app/media"
)

// streamBackend plays a live streaming element routed through a pitch
// node: handle -> pitch -> output is the only signal path while the
// backend is active. Rate goes to the handle's native control (which
// couples tempo and pitch, like a media element with pitch preservation
// off); detune goes only to the pitch node, in semitones.
type streamBackend struct {
	handle   MediaHandle
	pitch    *dsp.PitchShifter
	disposed bool
}

func newStreamBackend(handle MediaHandle) *streamBackend {
	return &streamBackend{handle: handle}
}

// awaitMetadata consumes handle events until the duration is known or
// the handle fails, forwarding intermediate lifecycle signals to
// onProgress as advisory notifications. On success the pitch node is
// wired to the handle's streamer, completing the signal path.
func (b *streamBackend) awaitMetadata(ctx context.Context, onProgress func(string)) (time.Duration, error) {
	for {
		select {
		case ev, ok := <-b.handle.Events():
			if !ok {
				return 0, errors.New("media element closed before metadata")
			}
			switch ev.Kind {
			case media.EventMetadata:
				b.pitch = dsp.NewPitchShifter(b.handle.Streamer())
				return ev.Duration, nil
			case media.EventError:
				return 0, ev.Err
			default:
				if onProgress != nil {
					onProgress(ev.Kind.String())
				}
			}
		case <-b.handle.Done():
			// The element was closed underneath us, typically because a
			// newer load tore this backend down.
			return 0, errors.New("media element closed before metadata")
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (b *streamBackend) Streamer() beep.Streamer { return b.pitch }

func (b *streamBackend) SampleRate() beep.SampleRate { return b.handle.Format().SampleRate }

func (b *streamBackend) SetRate(rate float64) {
	if !b.disposed {
		b.handle.SetRate(rate)
	}
}

// SetDetune converts cents to the semitones the pitch node expects. The
// /100 factor is the backend's unit contract; the engine always stores
// cents.
func (b *streamBackend) SetDetune(cents float64) {
	if !b.disposed && b.pitch != nil {
		b.pitch.SetSemitones(cents / 100)
	}
}

func (b *streamBackend) Position() time.Duration {
	if b.disposed {
		return 0
	}
	return b.handle.Position()
}

func (b *streamBackend) Seek(t time.Duration) error {
	if b.disposed {
		return nil
	}
	return b.handle.Seek(t)
}

func (b *streamBackend) Duration() time.Duration {
	if b.disposed {
		return 0
	}
	return b.handle.Duration()
}

// Dispose closes the handle so the transport stops buffering network
// data immediately, and releases the pitch node.
func (b *streamBackend) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true
	b.handle.Close()
}
