package dsp

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// Default grain geometry: ~46ms grains at 44.1kHz with 50% overlap.
// Triangular windows at 50% overlap sum to unity, so overlap-add is
// gain-neutral.
const (
	defaultGrainSize = 2048
	defaultHopSize   = defaultGrainSize / 2
)

// GrainPlayer plays a fully-buffered source using grain-based resequencing,
// giving independent control over playback rate (time-stretch) and detune
// (pitch shift in cents). Rate changes how fast the read position advances
// through the source; detune changes the resampling step inside each grain.
//
// GrainPlayer is not safe for concurrent use; like the rest of a beep
// streamer graph, mutate it only while the output is locked.
type GrainPlayer struct {
	src    beep.StreamSeeker
	length int

	grainSize int
	hopSize   int
	window    []float64

	rate   float64 // time-stretch multiplier
	detune float64 // cents
	step   float64 // per-sample read increment inside a grain, 2^(detune/1200)

	srcPos float64 // fractional read position in source frames

	ola     [][2]float64 // overlap-add accumulator, grainSize long
	pending [][2]float64 // synthesized output not yet consumed
	scratch [][2]float64
	drained bool
	err     error
}

// NewGrainPlayer creates a grain player over a seekable, fully-decoded
// source of known length.
func NewGrainPlayer(src beep.StreamSeeker) *GrainPlayer {
	g := &GrainPlayer{
		src:       src,
		length:    src.Len(),
		grainSize: defaultGrainSize,
		hopSize:   defaultHopSize,
		rate:      1.0,
		step:      1.0,
		ola:       make([][2]float64, defaultGrainSize),
	}
	g.window = triangularWindow(g.grainSize, g.hopSize)
	return g
}

// triangularWindow builds a window whose 50%-overlapped copies sum to one.
func triangularWindow(size, hop int) []float64 {
	w := make([]float64, size)
	for i := range w {
		if i < hop {
			w[i] = float64(i) / float64(hop)
		} else {
			w[i] = float64(size-i) / float64(hop)
		}
	}
	return w
}

// SetRate sets the time-stretch multiplier. Pitch is unaffected.
func (g *GrainPlayer) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	g.rate = rate
}

// Rate returns the current time-stretch multiplier.
func (g *GrainPlayer) Rate() float64 { return g.rate }

// SetDetune sets the pitch offset in cents. Duration is unaffected.
func (g *GrainPlayer) SetDetune(cents float64) {
	g.detune = cents
	g.step = math.Exp2(cents / 1200)
}

// Detune returns the current pitch offset in cents.
func (g *GrainPlayer) Detune() float64 { return g.detune }

// Position returns the current read position in source frames.
func (g *GrainPlayer) Position() int {
	return int(g.srcPos)
}

// Len returns the source length in frames.
func (g *GrainPlayer) Len() int { return g.length }

// Seek moves the read position to the given source frame and resets
// synthesis state so no stale grain audio bleeds across the jump.
func (g *GrainPlayer) Seek(p int) error {
	if p < 0 {
		p = 0
	}
	if p > g.length {
		p = g.length
	}
	g.srcPos = float64(p)
	g.pending = g.pending[:0]
	for i := range g.ola {
		g.ola[i] = [2]float64{}
	}
	g.drained = p >= g.length
	return nil
}

// Stream fills samples with grain-synthesized audio. It returns ok=false
// once the read position has passed the end of the source and the
// overlap-add tail has been flushed.
func (g *GrainPlayer) Stream(samples [][2]float64) (n int, ok bool) {
	if g.err != nil {
		return 0, false
	}
	for n < len(samples) {
		if len(g.pending) == 0 {
			if !g.synthesize() {
				return n, n > 0
			}
		}
		c := copy(samples[n:], g.pending)
		g.pending = g.pending[c:]
		n += c
	}
	return n, true
}

// Err returns the first error encountered on the underlying source.
func (g *GrainPlayer) Err() error {
	if g.err != nil {
		return g.err
	}
	return g.src.Err()
}

// synthesize produces the next hop of output: read one grain at the
// current position, window it, overlap-add, and emit the front of the
// accumulator. The read position advances by hop*rate source frames.
func (g *GrainPlayer) synthesize() bool {
	if g.drained {
		return false
	}
	if int(g.srcPos) >= g.length {
		// Flush whatever overlap remains from the previous grain.
		g.emitHop()
		g.drained = true
		return len(g.pending) > 0
	}

	grain := g.readGrain(int(g.srcPos))
	for i := 0; i < g.grainSize; i++ {
		g.ola[i][0] += grain[i][0] * g.window[i]
		g.ola[i][1] += grain[i][1] * g.window[i]
	}
	g.emitHop()
	g.srcPos += float64(g.hopSize) * g.rate
	return true
}

// emitHop moves the first hop of the accumulator into the pending queue
// and shifts the accumulator down.
func (g *GrainPlayer) emitHop() {
	g.pending = append(g.pending[:0], g.ola[:g.hopSize]...)
	copy(g.ola, g.ola[g.hopSize:])
	for i := g.grainSize - g.hopSize; i < g.grainSize; i++ {
		g.ola[i] = [2]float64{}
	}
}

// readGrain reads grainSize output samples starting at source frame
// start, resampled by the detune step with linear interpolation. Reads
// past the end of the source are zero-padded.
func (g *GrainPlayer) readGrain(start int) [][2]float64 {
	need := int(float64(g.grainSize)*g.step) + 2
	if cap(g.scratch) < need {
		g.scratch = make([][2]float64, need)
	}
	raw := g.scratch[:need]
	for i := range raw {
		raw[i] = [2]float64{}
	}

	if start < g.length {
		if err := g.src.Seek(start); err != nil {
			g.err = err
			return raw[:g.grainSize]
		}
		filled := 0
		for filled < need {
			m, ok := g.src.Stream(raw[filled:])
			filled += m
			if !ok {
				break
			}
		}
	}

	grain := make([][2]float64, g.grainSize)
	for i := range grain {
		p := float64(i) * g.step
		j := int(p)
		if j+1 >= need {
			break
		}
		frac := p - float64(j)
		grain[i][0] = raw[j][0] + (raw[j+1][0]-raw[j][0])*frac
		grain[i][1] = raw[j][1] + (raw[j+1][1]-raw[j][1])*frac
	}
	return grain
}
