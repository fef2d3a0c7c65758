// ABOUTME: Additive wavetables and General MIDI family patches
// ABOUTME: Maps programs to a table shape and an ADSR envelope
package synth

import "math"

const (
	tableSize = 2048

	// harmonics summed into the non-sine tables
	tableHarmonics = 16
)

type waveShape int

const (
	shapeSine waveShape = iota
	shapeTriangle
	shapeSquare
	shapeSaw
	numShapes
)

type wavetable [tableSize]float32

var wavetables [numShapes]wavetable

func init() {
	for shape := range wavetables {
		buildTable(&wavetables[shape], waveShape(shape))
	}
}

// buildTable sums band-limited harmonics and normalizes to a unit peak
func buildTable(t *wavetable, shape waveShape) {
	var peak float64
	samples := make([]float64, tableSize)
	for i := range samples {
		x := 2 * math.Pi * float64(i) / tableSize
		var v float64
		switch shape {
		case shapeSine:
			v = math.Sin(x)
		case shapeTriangle:
			for h := 1; h <= tableHarmonics; h += 2 {
				sign := 1.0
				if (h/2)%2 == 1 {
					sign = -1
				}
				v += sign * math.Sin(float64(h)*x) / float64(h*h)
			}
		case shapeSquare:
			for h := 1; h <= tableHarmonics; h += 2 {
				v += math.Sin(float64(h)*x) / float64(h)
			}
		case shapeSaw:
			for h := 1; h <= tableHarmonics; h++ {
				v += math.Sin(float64(h)*x) / float64(h)
			}
		}
		samples[i] = v
		peak = math.Max(peak, math.Abs(v))
	}
	for i, v := range samples {
		t[i] = float32(v / peak)
	}
}

// lookup reads the table at a fractional index
func (t *wavetable) lookup(phase float64, interpolate bool) float32 {
	i := int(phase)
	if !interpolate {
		return t[i&(tableSize-1)]
	}
	frac := float32(phase - float64(i))
	a := t[i&(tableSize-1)]
	b := t[(i+1)&(tableSize-1)]
	return a + (b-a)*frac
}

// patch is the sound used for one General MIDI instrument family
type patch struct {
	shape   waveShape
	attack  float64 // seconds
	decay   float64 // seconds
	sustain float32 // level 0..1
	release float64 // seconds
	gain    float32
}

// familyPatches is indexed by program/8
var familyPatches = [16]patch{
	{shapeTriangle, 0.005, 0.8, 0.25, 0.35, 1.0}, // piano
	{shapeSine, 0.002, 0.5, 0.0, 0.30, 1.0},      // chromatic percussion
	{shapeSquare, 0.010, 0.05, 0.9, 0.08, 0.6},   // organ
	{shapeTriangle, 0.003, 0.6, 0.15, 0.25, 1.0}, // guitar
	{shapeTriangle, 0.005, 0.3, 0.6, 0.10, 1.2},  // bass
	{shapeSaw, 0.080, 0.2, 0.8, 0.30, 0.6},       // strings
	{shapeSaw, 0.060, 0.2, 0.8, 0.40, 0.6},       // ensemble
	{shapeSquare, 0.030, 0.1, 0.8, 0.15, 0.6},    // brass
	{shapeSquare, 0.030, 0.1, 0.8, 0.12, 0.5},    // reed
	{shapeSine, 0.040, 0.1, 0.9, 0.15, 1.0},      // pipe
	{shapeSaw, 0.005, 0.2, 0.7, 0.15, 0.5},       // synth lead
	{shapeTriangle, 0.200, 0.4, 0.7, 0.60, 0.9},  // synth pad
	{shapeSaw, 0.100, 0.6, 0.4, 0.50, 0.5},       // synth effects
	{shapeTriangle, 0.002, 0.7, 0.1, 0.30, 1.0},  // ethnic
	{shapeSine, 0.001, 0.25, 0.0, 0.15, 1.0},     // percussive
	{shapeSquare, 0.050, 0.5, 0.3, 0.40, 0.4},    // sound effects
}

// patchFor picks the patch for a program; non-zero banks rotate the table shape
func patchFor(program, bank uint8) patch {
	p := familyPatches[(program&0x7f)/8]
	if bank != 0 {
		p.shape = waveShape((int(p.shape) + int(bank)) % int(numShapes))
	}
	return p
}

// noteFrequency returns the frequency in Hz of a possibly bent note
func noteFrequency(note uint8, bend float64) float64 {
	return 440 * math.Pow(2, (float64(note)-69+bend)/12)
}
