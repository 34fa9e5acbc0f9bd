package engine

import (
	"errors"
	"fmt"
)

// ErrLoadSuperseded is returned to a load whose result arrived after a
// newer load had already taken over. The superseded caller's state was
// never installed; the newest load owns the engine.
var ErrLoadSuperseded = errors.New("load superseded by a newer load")

// DecodeError reports that local bytes could not be decoded into
// playable audio. The engine's state is unchanged by the failed load.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode audio: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StreamError reports that a streaming source failed before or during
// metadata resolution. The engine is left with no backend.
type StreamError struct {
	URL string
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.URL, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
