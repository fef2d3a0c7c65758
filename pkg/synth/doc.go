// ABOUTME: Package synth renders Standard MIDI Files to PCM
// ABOUTME: Small wavetable synthesizer with lyrics, seeking and SMF re-export
// Package synth turns Standard MIDI Files into 16-bit little-endian
// stereo PCM.
//
// An Engine holds the session-wide settings (sample rate, default mixer
// options, master volume). Each opened file becomes a Track that is
// pulled chunk by chunk with Output until it returns 0.
//
// Example:
//
//	eng, err := synth.NewEngine(32072, synth.Reverb)
//	tr, err := eng.Open("song.mid")
//	buf := make([]byte, 16384)
//	for {
//		n, err := tr.Output(buf)
//		if n == 0 || err != nil {
//			break
//		}
//		out.Write(buf[:n])
//	}
//	tr.Close()
package synth
