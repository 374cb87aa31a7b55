// Package resampler implements a stateful linear-interpolation sample
// rate converter that preserves phase continuity across successive
// chunks of audio, so a stream fed through it chunk-by-chunk sounds
// identical to the same stream resampled whole.
package resampler

import "sync"

// Resampler converts a stream of int16 mono samples from one rate to
// another using linear interpolation. It is safe for concurrent use;
// callers normally own one instance per direction (capture vs
// playback) so the locks never contend in practice.
type Resampler struct {
	mu       sync.Mutex
	inRate   int
	outRate  int
	pos      float64 // fractional read position into the pending tail
	lastSamp int16   // last sample of the previous chunk, for interpolation across the boundary
	hasLast  bool
}

// New creates a Resampler converting from inRate to outRate, both in Hz.
func New(inRate, outRate int) *Resampler {
	return &Resampler{inRate: inRate, outRate: outRate}
}

// InRate returns the configured input sample rate.
func (r *Resampler) InRate() int { return r.inRate }

// OutRate returns the configured output sample rate.
func (r *Resampler) OutRate() int { return r.outRate }

// Reset clears accumulated phase and history, as if the Resampler were
// newly constructed. Useful when a stream discontinuity (e.g. device
// change) makes the old phase meaningless.
func (r *Resampler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pos = 0
	r.lastSamp = 0
	r.hasLast = false
}

// Process resamples in and returns the converted samples, retaining
// internal phase so that a subsequent call continues the stream
// seamlessly. An empty input returns an empty output without touching
// the phase accumulator.
func (r *Resampler) Process(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	if r.inRate == r.outRate {
		return append([]int16(nil), in...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ratio := float64(r.inRate) / float64(r.outRate)

	// Build a virtual series: [lastSamp, in...] so interpolation at
	// the very first output sample can reach one sample into the past.
	// On the first call there is no history yet, so in[0] stands in for
	// it; every chunk, the first included, then yields about
	// len(in)/ratio samples.
	if !r.hasLast {
		r.lastSamp = in[0]
	}
	series := make([]int16, 0, len(in)+1)
	series = append(series, r.lastSamp)
	series = append(series, in...)
	n := len(series)

	var out []int16
	p := r.pos
	for {
		i := int(p)
		if i+1 >= n {
			break
		}
		frac := p - float64(i)
		x0 := float64(series[i])
		x1 := float64(series[i+1])
		v := x0 + (x1-x0)*frac
		out = append(out, clampInt16(v))
		p += ratio
	}

	// r.pos for the next call is expressed relative to the next
	// series, whose index 0 (the carried history sample) is the same
	// physical sample as this series' index n-1. Re-basing the
	// leftover position onto that origin keeps phase continuous
	// across chunk boundaries regardless of chunk length.
	r.pos = p - float64(n-1)
	if r.pos < 0 {
		r.pos = 0
	}

	r.lastSamp = in[len(in)-1]
	r.hasLast = true

	return out
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
