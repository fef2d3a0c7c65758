// ABOUTME: PCM audio decoder
// ABOUTME: Decodes 16-bit and 24-bit PCM chunks to int32 samples, reusing its buffer
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Sendspin/midiplay/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	bitDepth int
	samples  []int32
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.Format) (*PCMDecoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM decoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMDecoder{
		bitDepth: format.BitDepth,
	}, nil
}

// Decode converts PCM bytes to int32 samples.
// The returned slice is owned by the decoder and is overwritten by the next call.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	width := d.bitDepth / 8
	n := len(data) / width
	if cap(d.samples) < n {
		d.samples = make([]int32, n)
	}
	out := d.samples[:n]

	if d.bitDepth == 24 {
		for i := range out {
			b := [3]byte{data[i*3], data[i*3+1], data[i*3+2]}
			out[i] = audio.SampleFrom24Bit(b)
		}
		return out, nil
	}

	for i := range out {
		out[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return out, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	d.samples = nil
	return nil
}
