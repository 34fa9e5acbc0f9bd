// Package output abstracts the single shared audio output device so the
// playback engine can be exercised without real hardware.
package output

import (
	"fmt"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Output is the shared audio destination. At most one streamer plays at a
// time; Play replaces whatever was playing before. Lock/Unlock guard
// mutations of a streamer that is currently wired to the device.
type Output interface {
	Init(sampleRate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
	Close() error
}

// Speaker plays through the default audio device.
type Speaker struct {
	initialized bool
	sampleRate  beep.SampleRate
}

// NewSpeaker returns an uninitialized speaker output.
func NewSpeaker() *Speaker {
	return &Speaker{}
}

// SampleRate returns the rate the device was initialized with.
func (s *Speaker) SampleRate() beep.SampleRate {
	return s.sampleRate
}

// Init opens the audio device at the given sample rate.
func (s *Speaker) Init(sampleRate beep.SampleRate, bufferSize int) error {
	if err := speaker.Init(sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}
	s.initialized = true
	s.sampleRate = sampleRate
	return nil
}

// Play starts streaming s, replacing any previous streamer.
func (s *Speaker) Play(streamer beep.Streamer) {
	speaker.Clear()
	speaker.Play(streamer)
}

// Clear silences the device and drops the current streamer.
func (s *Speaker) Clear() {
	speaker.Clear()
}

// Lock suspends the device loop so the streamer graph can be mutated.
func (s *Speaker) Lock() {
	speaker.Lock()
}

// Unlock resumes the device loop.
func (s *Speaker) Unlock() {
	speaker.Unlock()
}

// Close releases the audio device.
func (s *Speaker) Close() error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	speaker.Clear()
	speaker.Close()
	return nil
}
