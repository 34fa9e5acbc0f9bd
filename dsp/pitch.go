package dsp

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// PitchShifter shifts the pitch of a live streamer by a number of
// semitones without changing its duration. It uses the same grain
// overlap-add scheme as GrainPlayer, but reads from a sliding window of
// recent input instead of a seekable buffer, so it works on sources that
// arrive progressively (network streams).
//
// Latency is one grain (about 46ms at 44.1kHz) and constant regardless of
// the shift amount. A shift of zero semitones is a bit-exact passthrough.
type PitchShifter struct {
	src beep.Streamer

	grainSize int
	hopSize   int
	window    []float64

	semitones float64
	ratio     float64 // 2^(semitones/12)

	fifo    [][2]float64
	ola     [][2]float64
	pending [][2]float64
	srcDone bool
	drained bool
}

// NewPitchShifter wraps src in a pitch shifter initialized to zero shift.
func NewPitchShifter(src beep.Streamer) *PitchShifter {
	p := &PitchShifter{
		src:       src,
		grainSize: defaultGrainSize,
		hopSize:   defaultHopSize,
		semitones: 0,
		ratio:     1.0,
		ola:       make([][2]float64, defaultGrainSize),
	}
	p.window = triangularWindow(p.grainSize, p.hopSize)
	return p
}

// SetSemitones sets the pitch shift. The value is stored exactly as
// given; the resampling ratio is derived as 2^(semitones/12).
func (p *PitchShifter) SetSemitones(semitones float64) {
	p.semitones = semitones
	p.ratio = math.Exp2(semitones / 12)
}

// Semitones returns the current pitch shift.
func (p *PitchShifter) Semitones() float64 { return p.semitones }

// Stream fills samples with pitch-shifted audio from the wrapped source.
func (p *PitchShifter) Stream(samples [][2]float64) (n int, ok bool) {
	if p.ratio == 1.0 && len(p.fifo) == 0 && len(p.pending) == 0 {
		// No shift and no buffered state: pass the source through.
		return p.src.Stream(samples)
	}
	for n < len(samples) {
		if len(p.pending) == 0 {
			if !p.synthesize() {
				return n, n > 0
			}
		}
		c := copy(samples[n:], p.pending)
		p.pending = p.pending[c:]
		n += c
	}
	return n, true
}

// Err returns the wrapped source's error, if any.
func (p *PitchShifter) Err() error { return p.src.Err() }

// synthesize produces the next hop of output from the input window.
func (p *PitchShifter) synthesize() bool {
	if p.drained {
		return false
	}

	need := int(float64(p.grainSize)*p.ratio) + 2
	p.fill(need)

	if len(p.fifo) == 0 {
		// Source exhausted; flush remaining overlap.
		p.emitHop()
		p.drained = true
		return len(p.pending) > 0
	}

	for i := 0; i < p.grainSize; i++ {
		pos := float64(i) * p.ratio
		j := int(pos)
		if j+1 >= len(p.fifo) {
			break
		}
		frac := pos - float64(j)
		l := p.fifo[j][0] + (p.fifo[j+1][0]-p.fifo[j][0])*frac
		r := p.fifo[j][1] + (p.fifo[j+1][1]-p.fifo[j][1])*frac
		p.ola[i][0] += l * p.window[i]
		p.ola[i][1] += r * p.window[i]
	}
	p.emitHop()

	// Consume one hop of input per hop of output so duration is preserved.
	drop := p.hopSize
	if drop > len(p.fifo) {
		drop = len(p.fifo)
	}
	p.fifo = p.fifo[:copy(p.fifo, p.fifo[drop:])]
	return true
}

// fill pulls from the source until the input window holds at least need
// samples or the source ends.
func (p *PitchShifter) fill(need int) {
	for len(p.fifo) < need && !p.srcDone {
		buf := make([][2]float64, need-len(p.fifo))
		m, ok := p.src.Stream(buf)
		p.fifo = append(p.fifo, buf[:m]...)
		if !ok {
			p.srcDone = true
		}
	}
}

// emitHop moves the first hop of the accumulator into the pending queue.
func (p *PitchShifter) emitHop() {
	p.pending = append(p.pending[:0], p.ola[:p.hopSize]...)
	copy(p.ola, p.ola[p.hopSize:])
	for i := p.grainSize - p.hopSize; i < p.grainSize; i++ {
		p.ola[i] = [2]float64{}
	}
}
