// ABOUTME: Voices, envelopes and MIDI channel state
// ABOUTME: Per-note oscillators with ADSR and LFSR noise for the drum channel
package synth

import "math"

const (
	maxVoices       = 64
	percussionChan  = 9
	defaultBendSemi = 2.0

	// voiceLevel keeps a handful of full-velocity voices under clipping
	voiceLevel = 0.18

	noiseSeed = 0x7FFFFF
	noiseMask = 0x7FFFFF
)

const (
	envAttack = iota
	envDecay
	envSustain
	envRelease
	envDone
)

type envelope struct {
	stage   int
	level   float32
	attack  float32 // per-sample increments
	decay   float32
	sustain float32
	release float32
}

func newEnvelope(p patch, rate float64) envelope {
	step := func(seconds float64, span float32) float32 {
		if seconds <= 0 {
			return span
		}
		return span / float32(seconds*rate)
	}
	return envelope{
		stage:   envAttack,
		attack:  step(p.attack, 1),
		decay:   step(p.decay, 1-p.sustain),
		sustain: p.sustain,
		release: step(p.release, 1),
	}
}

// next advances the envelope one sample and returns its level
func (e *envelope) next() float32 {
	switch e.stage {
	case envAttack:
		e.level += e.attack
		if e.level >= 1 {
			e.level = 1
			e.stage = envDecay
		}
	case envDecay:
		e.level -= e.decay
		if e.level <= e.sustain {
			e.level = e.sustain
			e.stage = envSustain
			if e.sustain <= 0 {
				e.stage = envDone
			}
		}
	case envRelease:
		e.level -= e.release
		if e.level <= 0 {
			e.level = 0
			e.stage = envDone
		}
	}
	return e.level
}

func (e *envelope) noteOff() {
	if e.stage < envRelease {
		e.stage = envRelease
		// release runs over the configured time from the current level
		if e.level > 0 {
			e.release *= e.level
		}
	}
}

// channel holds controller state for one of the 16 MIDI channels
type channel struct {
	program    uint8
	bank       uint8
	volume     uint8
	expression uint8
	pan        uint8
	sustain    bool
	bend       float64 // semitones
	bendRange  float64
	rpn        [2]uint8
}

func (c *channel) reset() {
	*c = channel{}
	c.resetControllers()
}

func (c *channel) resetControllers() {
	c.volume = 100
	c.expression = 127
	c.pan = 64
	c.sustain = false
	c.bend = 0
	c.bendRange = defaultBendSemi
	c.rpn = [2]uint8{127, 127}
}

// gain combines volume and expression using the selected curve
func (c *channel) gain(velocity uint8, logVolume bool) float32 {
	v := float64(velocity) / 127
	vol := float64(c.volume) / 127
	expr := float64(c.expression) / 127
	g := v * vol * expr
	if logVolume {
		// squared amplitude, 40*log10(x) dB
		g = g * g
	}
	return float32(g)
}

// panGains returns equal-power left and right gains
func (c *channel) panGains() (float32, float32) {
	angle := float64(c.pan) / 127 * math.Pi / 2
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}

type voice struct {
	active    bool
	serial    uint64
	channel   uint8
	note      uint8
	velocity  uint8
	held      bool
	sustained bool
	table     *wavetable
	gain      float32
	phase     float64
	env       envelope

	noise      bool
	lfsr       uint32
	noiseState float32
	noiseCoef  float32
}

func (v *voice) release() {
	v.held = false
	v.sustained = false
	v.env.noteOff()
}

// render adds n frames of this voice into the interleaved stereo mix
func (v *voice) render(mix []float32, n int, ch *channel, rate float64, opts Option) {
	left, right := ch.panGains()
	amp := v.gain * ch.gain(v.velocity, opts.Has(LogVolume)) * voiceLevel
	step := noteFrequency(v.note, ch.bend) * tableSize / rate
	interpolate := opts.Has(EnhancedResampling)

	for i := 0; i < n; i++ {
		level := v.env.next()
		if v.env.stage == envDone {
			v.active = false
			return
		}

		var s float32
		if v.noise {
			bit := ((v.lfsr >> 22) ^ (v.lfsr >> 17)) & 1
			v.lfsr = ((v.lfsr << 1) | bit) & noiseMask
			white := float32(v.lfsr&1)*2 - 1
			v.noiseState += v.noiseCoef * (white - v.noiseState)
			s = v.noiseState
		} else {
			s = v.table.lookup(v.phase, interpolate)
			v.phase += step
			if v.phase >= tableSize {
				v.phase -= tableSize
			}
		}

		s *= amp * level
		mix[2*i] += s * left
		mix[2*i+1] += s * right
	}
}

// drumPatch shapes a percussion hit by key: low keys are tonal thumps,
// high keys are long bright noise
func drumPatch(key uint8) (patch, bool, float32) {
	switch {
	case key == 35 || key == 36:
		return patch{shape: shapeSine, attack: 0.001, decay: 0.18, gain: 1.6}, false, 0
	case key >= 49 && key <= 59:
		return patch{shape: shapeSine, attack: 0.001, decay: 0.9, gain: 0.5}, true, 0.9
	case key == 42 || key == 44 || key == 46:
		return patch{shape: shapeSine, attack: 0.001, decay: 0.08, gain: 0.6}, true, 0.8
	default:
		return patch{shape: shapeSine, attack: 0.001, decay: 0.22, gain: 0.9}, true, 0.35
	}
}
