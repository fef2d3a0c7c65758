// ABOUTME: PCM decoding package
// ABOUTME: Converts interleaved little-endian PCM bytes to int32 samples
// Package decode turns raw PCM bytes into int32 samples.
//
// Supports: PCM (16-bit and 24-bit)
//
// Samples come out in 24-bit range so backends that keep an int32
// working buffer (malgo, FLAC capture) share one representation.
//
// Example:
//
//	decoder, err := decode.NewPCM(format)
//	samples, err := decoder.Decode(chunk)
package decode
