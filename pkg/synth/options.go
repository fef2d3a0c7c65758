// ABOUTME: Mixer option flags
// ABOUTME: Bit set of rendering toggles shared by the engine defaults and tracks
package synth

import "strings"

// Option is a set of mixer flags
type Option uint16

const (
	LogVolume Option = 1 << iota
	EnhancedResampling
	Reverb
	RoundTempo
	StripSilence
	TextAsLyric
	SaveAsType0
)

// loadOptions only take effect when a file is opened
const loadOptions = RoundTempo | StripSilence

var optionNames = []struct {
	opt  Option
	name string
}{
	{LogVolume, "logvolume"},
	{EnhancedResampling, "enhanced"},
	{Reverb, "reverb"},
	{RoundTempo, "roundtempo"},
	{StripSilence, "stripsilence"},
	{TextAsLyric, "textaslyric"},
	{SaveAsType0, "type0"},
}

// Has reports whether every flag in o is set
func (s Option) Has(o Option) bool {
	return s&o == o
}

// With returns s with o set or cleared
func (s Option) With(o Option, on bool) Option {
	if on {
		return s | o
	}
	return s &^ o
}

func (s Option) String() string {
	var names []string
	for _, n := range optionNames {
		if s.Has(n.opt) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
