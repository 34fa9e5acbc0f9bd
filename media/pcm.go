package media

import (
	"io"
	"time"

	"github.com/gopxl/beep/v2"
)

// pcmStreamer adapts a stream of 16-bit little-endian stereo PCM (the
// output of the MP3 decoder) into a beep.Streamer. It tracks how many
// frames it has consumed so the element can report a source-time
// position.
type pcmStreamer struct {
	src        io.Reader
	sampleRate beep.SampleRate

	buf       []byte
	frames    int
	base      time.Duration
	err       error
	done      bool
	onPlaying func() // fired once, on the first streamed sample
}

func newPCMStreamer(src io.Reader, sampleRate beep.SampleRate) *pcmStreamer {
	return &pcmStreamer{src: src, sampleRate: sampleRate}
}

// setSource swaps the underlying PCM source and rebases the position.
// Used after a ranged re-request on seek.
func (s *pcmStreamer) setSource(src io.Reader, base time.Duration) {
	s.src = src
	s.base = base
	s.frames = 0
	s.done = false
	s.err = nil
}

// position returns the source-time position of the next frame to play.
func (s *pcmStreamer) position() time.Duration {
	return s.base + s.sampleRate.D(s.frames)
}

func (s *pcmStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.done {
		return 0, false
	}

	want := len(samples) * 4 // 2 channels x 2 bytes
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	buf := s.buf[:want]

	read, err := io.ReadFull(s.src, buf)
	frames := read / 4
	for i := 0; i < frames; i++ {
		left := int16(uint16(buf[i*4]) | uint16(buf[i*4+1])<<8)
		right := int16(uint16(buf[i*4+2]) | uint16(buf[i*4+3])<<8)
		samples[i][0] = float64(left) / 32767
		samples[i][1] = float64(right) / 32767
	}
	s.frames += frames

	if frames > 0 && s.onPlaying != nil {
		s.onPlaying()
		s.onPlaying = nil
	}

	if err != nil {
		s.done = true
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			s.err = err
		}
	}
	return frames, frames > 0
}

func (s *pcmStreamer) Err() error {
	return s.err
}
