// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the session Format and sample conversion functions
// Package audio provides the PCM format shared by the synthesizer and every
// playback backend.
//
// A Format is fixed for a whole playback session: the synthesizer renders
// 16-bit little-endian stereo at the session rate, and each backend is
// opened with the same Format.
//
// It also provides utilities for converting between sample formats:
//   - 16-bit ↔ 24-bit conversions
//   - int32 ↔ packed byte conversions
//
// Example:
//
//	format := audio.Stereo16(audio.DefaultSampleRate)
//	frames := format.SecondsToFrames(1.5)
//	n := format.FramesToBytes(frames)
package audio
