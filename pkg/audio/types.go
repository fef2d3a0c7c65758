// ABOUTME: Audio type definitions
// ABOUTME: Defines the session PCM format and sample conversions
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// DefaultSampleRate is the rate the player renders at unless told otherwise
const DefaultSampleRate = 32072

// Format describes the interleaved PCM stream of a playback session.
// It is fixed for the whole session; every backend is opened with it.
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Stereo16 returns the 16-bit stereo PCM format the synthesizer produces
func Stereo16(sampleRate int) Format {
	return Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   2,
		BitDepth:   16,
	}
}

// FrameSize returns the number of bytes in one sample frame (all channels)
func (f Format) FrameSize() int {
	return f.Channels * (f.BitDepth / 8)
}

// FramesToBytes converts a frame count to a byte count
func (f Format) FramesToBytes(frames uint64) uint64 {
	return frames * uint64(f.FrameSize())
}

// BytesToFrames converts a byte count to whole frames
func (f Format) BytesToFrames(n int) uint64 {
	fs := f.FrameSize()
	if fs == 0 || n <= 0 {
		return 0
	}
	return uint64(n / fs)
}

// SecondsToFrames converts seconds (possibly fractional) to a frame count
func (f Format) SecondsToFrames(seconds float64) uint64 {
	if seconds <= 0 {
		return 0
	}
	return uint64(seconds * float64(f.SampleRate))
}

// Duration converts a frame count to wall-clock time
func (f Format) Duration(frames uint64) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks the format is something a backend can be opened with
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("unsupported channel count: %d (supported: 1, 2)", f.Channels)
	}
	if f.BitDepth != 16 && f.BitDepth != 24 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", f.BitDepth)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz %dch %d-bit", f.SampleRate, f.Channels, f.BitDepth)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	// Left-shift to position 16-bit value in upper bits
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
