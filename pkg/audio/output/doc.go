// ABOUTME: Audio output package for playing and capturing PCM
// ABOUTME: Provides the Output interface, the backend table and its backends
// Package output provides the playback backends a session can push PCM into.
//
// Backends form a closed, enum-indexed table. Each entry has a name, a
// description, an enabled flag and a constructor returning an Output.
// The null backend is always enabled.
//
// Example:
//
//	d, err := output.Lookup("wave")
//	out := d.New(output.Options{Path: "song.wav"})
//	err = out.Open(audio.Stereo16(32072))
//	_, err = out.Write(pcm)
//	err = out.Close()
package output
