// Package engine implements the playback engine: one uniform control
// surface over two structurally different pipelines — a fully-buffered,
// time-stretched local decode and a live, pitch-shifted network stream.
// The engine owns at most one backend at a time, switches between them
// with a strict teardown protocol, and keeps time, duration and play
// state consistent across the switch.
package engine

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/ngeltman/music-pitch-app/media"
	"github.com/ngeltman/music-pitch-app/output"
)

const defaultResampleQuality = 4

// Engine coordinates playback across local and stream backends. Create
// one with New and pass it to whatever needs playback control; there is
// no package-level instance.
//
// Transport and parameter operations are synchronous and never fail:
// with no backend loaded they are no-ops and the time queries return
// zero. Only LoadFile and LoadURL can fail, and a failed load never
// leaves a partial backend behind.
type Engine struct {
	mu sync.Mutex

	out     output.Output
	outRate beep.SampleRate
	quality int
	log     *slog.Logger

	mode    Mode
	playing bool
	rate    float64
	detune  int // cents

	active  backend
	pending backend // stream backend awaiting metadata, not yet installed
	ctrl    *beep.Ctrl

	// loadGen tags each load; a load whose tag is stale by the time its
	// result arrives has been superseded and must not touch state.
	loadGen uint64

	// openStream is swapped out in tests to avoid real connections.
	openStream func(url string) MediaHandle
}

// Option configures an Engine.
type Option func(*Engine)

// WithResampleQuality sets the resampler quality used when converting
// backend sample rates to the output rate and for native stream rate.
func WithResampleQuality(q int) Option {
	return func(e *Engine) {
		if q >= 1 && q <= 64 {
			e.quality = q
		}
	}
}

// WithHTTPClient sets the client used to open streaming connections.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Engine) {
		e.openStream = func(url string) MediaHandle {
			return media.NewElement(client, url, e.quality)
		}
	}
}

// New creates an engine that plays through out, which must already be
// initialized at outRate.
func New(out output.Output, outRate beep.SampleRate, opts ...Option) *Engine {
	e := &Engine{
		out:     out,
		outRate: outRate,
		quality: defaultResampleQuality,
		log:     slog.With("component", "engine"),
		rate:    1.0,
	}
	e.openStream = func(url string) MediaHandle {
		return media.NewElement(http.DefaultClient, url, e.quality)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LoadFile decodes data fully and installs a local backend. It returns
// the decoded duration. On decode failure it returns a *DecodeError and
// the engine is left exactly as it was: the previous backend, if any,
// keeps playing.
func (e *Engine) LoadFile(ctx context.Context, data []byte) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Decode before any teardown so a failed load is a true no-op.
	buffer, format, err := media.DecodeBytes(data)
	if err != nil {
		return 0, &DecodeError{Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadGen++
	e.teardownLocked()

	b := newLocalBackend(buffer, format)
	b.SetRate(e.rate)
	b.SetDetune(float64(e.detune))
	e.installLocked(b, ModeLocal)

	d := b.Duration()
	e.log.Info("loaded local file", "duration", d, "sampleRate", int(format.SampleRate))
	return d, nil
}

// LoadURL installs a stream backend bound to url and suspends until the
// stream reports its metadata or fails. Advisory lifecycle notifications
// (connecting, buffering, playable) are forwarded to onProgress, which
// may be nil. On failure it returns a *StreamError and the engine is
// left with no backend. A load that is superseded by a newer load
// returns ErrLoadSuperseded without touching engine state.
func (e *Engine) LoadURL(ctx context.Context, url string, onProgress func(string)) (time.Duration, error) {
	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	e.teardownLocked()

	b := newStreamBackend(e.openStream(url))
	e.pending = b
	e.mu.Unlock()

	d, err := b.awaitMetadata(ctx, onProgress)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.loadGen {
		// A newer load took over and already disposed this backend;
		// whatever the outcome was, it must not mutate engine state.
		return 0, ErrLoadSuperseded
	}
	e.pending = nil
	if err != nil {
		b.Dispose()
		e.mode = ModeNone
		e.log.Warn("stream load failed", "url", url, "err", err)
		return 0, &StreamError{URL: url, Err: err}
	}

	b.SetRate(e.rate)
	b.SetDetune(float64(e.detune))
	e.installLocked(b, ModeStream)
	e.log.Info("loaded stream", "url", url, "duration", d)
	return d, nil
}

// installLocked wires a constructed backend to the output, paused at
// position zero. Callers hold e.mu and have already torn down any
// previous backend.
func (e *Engine) installLocked(b backend, mode Mode) {
	s := b.Streamer()
	if sr := b.SampleRate(); sr != 0 && sr != e.outRate {
		s = beep.Resample(e.quality, sr, e.outRate, s)
	}
	e.ctrl = &beep.Ctrl{Streamer: s, Paused: true}
	e.out.Play(e.ctrl)
	e.active = b
	e.mode = mode
	e.playing = false
}

// teardownLocked stops playback and releases the active and any pending
// backend, in that order: silence the output first so two backends are
// never wired to the device at the same time, then dispose, then clear.
func (e *Engine) teardownLocked() {
	e.out.Clear()
	e.ctrl = nil
	if e.active != nil {
		e.active.Dispose()
		e.active = nil
	}
	if e.pending != nil {
		e.pending.Dispose()
		e.pending = nil
	}
	e.playing = false
	e.mode = ModeNone
}

// Play resumes the active backend. No-op when nothing is loaded.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return
	}
	e.out.Lock()
	e.ctrl.Paused = false
	e.out.Unlock()
	e.playing = true
}

// Pause suspends the active backend without moving the position.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return
	}
	e.out.Lock()
	e.ctrl.Paused = true
	e.out.Unlock()
	e.playing = false
}

// Stop suspends the active backend and resets the position to zero.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return
	}
	e.out.Lock()
	e.ctrl.Paused = true
	if err := e.active.Seek(0); err != nil {
		e.log.Warn("stop: seek to start failed", "err", err)
	}
	e.out.Unlock()
	e.playing = false
}

// Seek moves the active backend's position to t without changing the
// play state. No-op when nothing is loaded; a backend that cannot seek
// (a live stream of unknown length) logs and keeps playing.
func (e *Engine) Seek(t time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return
	}
	e.out.Lock()
	err := e.active.Seek(t)
	e.out.Unlock()
	if err != nil {
		e.log.Warn("seek failed", "to", t, "err", err)
	}
}

// SetPlaybackRate sets the playback speed multiplier. The value is kept
// across loads and pushed to whichever backend is active.
func (e *Engine) SetPlaybackRate(rate float64) {
	if rate <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = rate
	if e.active == nil {
		return
	}
	e.out.Lock()
	e.active.SetRate(rate)
	e.out.Unlock()
}

// SetDetune sets the pitch offset in cents. The engine always stores
// cents; each backend converts to its own unit (the stream pitch node
// takes semitones, cents/100).
func (e *Engine) SetDetune(cents int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detune = cents
	if e.active == nil {
		return
	}
	e.out.Lock()
	e.active.SetDetune(float64(cents))
	e.out.Unlock()
}

// CurrentTime returns the active backend's position, or zero when
// nothing is loaded.
func (e *Engine) CurrentTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return 0
	}
	e.out.Lock()
	p := e.active.Position()
	e.out.Unlock()
	return p
}

// Duration returns the active backend's known duration, or zero when
// unknown or nothing is loaded.
func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return 0
	}
	return e.active.Duration()
}

// Mode returns which backend is active.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// IsPlaying reports whether the active backend is audibly playing.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// PlaybackRate returns the stored playback rate.
func (e *Engine) PlaybackRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

// Detune returns the stored detune in cents.
func (e *Engine) Detune() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detune
}

// Close tears down whatever backend is loaded. The output device itself
// belongs to the caller and stays open.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadGen++
	e.teardownLocked()
	return nil
}
