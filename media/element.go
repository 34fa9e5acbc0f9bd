package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// DurationHeader carries the track duration in seconds on responses from
// the streaming endpoint. When present it resolves metadata without
// waiting on the decoder.
const DurationHeader = "X-Audio-Duration"

// EventKind identifies a lifecycle event reported by an Element.
type EventKind int

const (
	// EventConnecting fires when the element starts its connection.
	EventConnecting EventKind = iota
	// EventBuffering fires when the element is waiting on network data.
	EventBuffering
	// EventMetadata fires once the duration is known; Duration is set.
	EventMetadata
	// EventPlayable fires when decoded audio is ready to stream.
	EventPlayable
	// EventPlaying fires once, when the first samples leave the element.
	EventPlaying
	// EventError fires when the connection or decoder fails; Err is set.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnecting:
		return "connecting"
	case EventBuffering:
		return "buffering"
	case EventMetadata:
		return "metadata"
	case EventPlayable:
		return "playable"
	case EventPlaying:
		return "playing"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a lifecycle notification from an Element.
type Event struct {
	Kind     EventKind
	Duration time.Duration
	Err      error
}

// Element is a live streaming media endpoint bound to a URL. The
// connection begins immediately at construction; bytes arrive and are
// decoded progressively rather than buffered up front. Lifecycle is
// reported on Events: metadata (duration), buffering, playable, playing,
// or error.
//
// The element's native playback-rate control is a resampler: changing the
// rate changes tempo and pitch together, the way a media element behaves
// with pitch preservation disabled. Independent pitch correction is the
// job of a downstream pitch node, never of the element.
type Element struct {
	url     string
	client  *http.Client
	quality int
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu        sync.Mutex
	body      interface{ Close() error }
	pcm       *pcmStreamer
	resampler *beep.Resampler
	format    beep.Format
	duration  time.Duration
	length    int64 // Content-Length of the full stream, -1 if unknown
	closed    bool
}

// NewElement binds an element to url and immediately begins connecting.
// quality is the resampler quality used for the native rate control.
func NewElement(client *http.Client, url string, quality int) *Element {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Element{
		url:     url,
		client:  client,
		quality: quality,
		log:     slog.With("component", "media", "url", url),
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan Event, 16),
		length:  -1,
	}
	go e.connect()
	return e
}

// Events returns the element's lifecycle event channel.
func (e *Element) Events() <-chan Event { return e.events }

// Done is closed when the element has been closed and will emit no
// further events.
func (e *Element) Done() <-chan struct{} { return e.ctx.Done() }

// connect opens the stream and wires up the decoder, emitting lifecycle
// events as it goes.
func (e *Element) connect() {
	e.emit(Event{Kind: EventConnecting})

	resp, err := e.open(0)
	if err != nil {
		e.emit(Event{Kind: EventError, Err: err})
		return
	}

	e.emit(Event{Kind: EventBuffering})

	dec, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		e.emit(Event{Kind: EventError, Err: fmt.Errorf("decode stream: %w", err)})
		return
	}

	sr := beep.SampleRate(dec.SampleRate())
	pcm := newPCMStreamer(dec, sr)
	pcm.onPlaying = func() {
		e.emit(Event{Kind: EventPlaying})
	}

	duration := e.headerDuration(resp)
	if duration == 0 {
		// go-mp3 knows the decoded length only for seekable sources.
		if n := dec.Length(); n > 0 {
			duration = sr.D(int(n / 4))
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		resp.Body.Close()
		return
	}
	e.body = resp.Body
	e.pcm = pcm
	e.resampler = beep.ResampleRatio(e.quality, 1.0, pcm)
	e.format = beep.Format{SampleRate: sr, NumChannels: 2, Precision: 2}
	e.duration = duration
	if resp.ContentLength > 0 {
		e.length = resp.ContentLength
	}
	e.mu.Unlock()

	e.emit(Event{Kind: EventMetadata, Duration: duration})
	e.emit(Event{Kind: EventPlayable})
}

// open issues a GET for the stream, optionally from a byte offset.
func (e *Element) open(offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(e.ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %s", resp.Status)
	}
	return resp, nil
}

// headerDuration reads the duration header if the endpoint provides one.
func (e *Element) headerDuration(resp *http.Response) time.Duration {
	v := resp.Header.Get(DurationHeader)
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		e.log.Warn("ignoring malformed duration header", "value", v)
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// emit delivers an event without ever blocking: once the load completes
// nobody drains the channel, and a stalled emit here would stall the
// audio path.
func (e *Element) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

// Streamer returns the element's output signal: decoded audio after the
// native rate control. Nil until the element is playable.
func (e *Element) Streamer() beep.Streamer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resampler == nil {
		return nil
	}
	return e.resampler
}

// Format returns the decoded stream format. Zero until playable.
func (e *Element) Format() beep.Format {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.format
}

// Duration returns the known duration, or zero when unknown.
func (e *Element) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.duration
}

// SetRate sets the native playback rate. Call with the output locked
// while the element is playing.
func (e *Element) SetRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resampler != nil && rate > 0 {
		e.resampler.SetRatio(rate)
	}
}

// Position returns the current position in source time.
func (e *Element) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pcm == nil {
		return 0
	}
	return e.pcm.position()
}

// Seek re-requests the stream at the byte offset proportional to t. It
// requires a known duration and content length; live streams without
// either are not seekable. Call with the output locked.
func (e *Element) Seek(t time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.pcm == nil {
		return fmt.Errorf("element is not playable")
	}
	if e.duration <= 0 || e.length <= 0 {
		return fmt.Errorf("stream is not seekable: unknown length")
	}
	if t < 0 {
		t = 0
	}
	if t > e.duration {
		t = e.duration
	}

	offset := int64(float64(e.length) * (float64(t) / float64(e.duration)))
	e.emit(Event{Kind: EventBuffering})

	resp, err := e.open(offset)
	if err != nil {
		return err
	}
	dec, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("decode stream after seek: %w", err)
	}

	if e.body != nil {
		e.body.Close()
	}
	e.body = resp.Body
	e.pcm.setSource(dec, t)
	e.emit(Event{Kind: EventPlayable})
	return nil
}

// Close detaches the element from its source: the request context is
// cancelled and the body closed so the transport stops buffering network
// data immediately. Safe to call more than once.
func (e *Element) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.cancel()
	if e.body != nil {
		e.body.Close()
		e.body = nil
	}
	return nil
}
