// ABOUTME: Schroeder reverb
// ABOUTME: Pre-delay, four parallel combs and two series allpasses per side
package synth

const (
	preDelayMs    = 8
	allpassCoef   = 0.5
	reverbMix     = 0.25
	reverbAtten   = 0.25
	reverbRefRate = 44100.0

	// stereoSpread offsets the right side's delay lines
	stereoSpread = 23
)

var (
	combDelays   = [4]int{1687, 1601, 2053, 2251}
	combDecays   = [4]float32{0.97, 0.95, 0.93, 0.91}
	allpassDelay = [2]int{389, 307}
)

type delayLine struct {
	buf []float32
	pos int
}

func newDelayLine(n int) delayLine {
	return delayLine{buf: make([]float32, max(n, 1))}
}

// tap returns the oldest sample and replaces it with in
func (d *delayLine) tap(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in
	d.pos++
	if d.pos == len(d.buf) {
		d.pos = 0
	}
	return out
}

func (d *delayLine) clear() {
	clear(d.buf)
	d.pos = 0
}

type reverbSide struct {
	preDelay delayLine
	combs    [4]delayLine
	allpass  [2]delayLine
}

func newReverbSide(rate int, spread int) reverbSide {
	scale := float64(rate) / reverbRefRate
	s := reverbSide{
		preDelay: newDelayLine(preDelayMs * rate / 1000),
	}
	for i, d := range combDelays {
		s.combs[i] = newDelayLine(int(float64(d+spread) * scale))
	}
	for i, d := range allpassDelay {
		s.allpass[i] = newDelayLine(int(float64(d+spread) * scale))
	}
	return s
}

func (s *reverbSide) process(in float32) float32 {
	delayed := s.preDelay.tap(in)

	var out float32
	for i := range s.combs {
		c := &s.combs[i]
		prev := c.buf[c.pos]
		c.tap(delayed + prev*combDecays[i])
		out += prev
	}

	for i := range s.allpass {
		a := &s.allpass[i]
		prev := a.buf[a.pos]
		a.tap(out + prev*allpassCoef)
		out = prev - out
	}
	return out * reverbAtten
}

func (s *reverbSide) clear() {
	s.preDelay.clear()
	for i := range s.combs {
		s.combs[i].clear()
	}
	for i := range s.allpass {
		s.allpass[i].clear()
	}
}

type reverb struct {
	left, right reverbSide
}

func newReverb(rate int) *reverb {
	return &reverb{
		left:  newReverbSide(rate, 0),
		right: newReverbSide(rate, stereoSpread),
	}
}

// process mixes reverb into interleaved stereo frames in place
func (r *reverb) process(mix []float32) {
	for i := 0; i+1 < len(mix); i += 2 {
		l, rt := mix[i], mix[i+1]
		mix[i] = l*(1-reverbMix) + r.left.process(l)*reverbMix
		mix[i+1] = rt*(1-reverbMix) + r.right.process(rt)*reverbMix
	}
}

func (r *reverb) reset() {
	r.left.clear()
	r.right.clear()
}
