// ABOUTME: FLAC file capture backend
// ABOUTME: Encodes session PCM into a FLAC stream using verbatim subframes
package output

import (
	"fmt"
	"log"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/audio/decode"
)

// Block size bounds written to STREAMINFO
const (
	flacMinBlockSize = 16
	flacBlockSize    = 4096
)

// FLAC captures PCM into a .flac file
type FLAC struct {
	path    string
	file    *os.File
	enc     *flac.Encoder
	decoder *decode.PCMDecoder
	format  audio.Format
	written uint64
	chans   [][]int32
}

// NewFLAC creates a FLAC capture backend writing to path
func NewFLAC(path string) Output {
	return &FLAC{path: path}
}

// Open creates the capture file and writes the stream header
func (f *FLAC) Open(format audio.Format) error {
	if f.file != nil {
		return fmt.Errorf("%s is already open", f.path)
	}
	if err := format.Validate(); err != nil {
		return err
	}

	decoder, err := decode.NewPCM(format)
	if err != nil {
		return err
	}

	file, err := createExclusive(f.path)
	if err != nil {
		return err
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  flacMinBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(format.SampleRate),
		NChannels:     uint8(format.Channels),
		BitsPerSample: uint8(format.BitDepth),
	}
	enc, err := flac.NewEncoder(file, info)
	if err != nil {
		file.Close()
		os.Remove(f.path)
		return fmt.Errorf("failed to create flac encoder: %w", err)
	}

	f.file = file
	f.enc = enc
	f.decoder = decoder
	f.format = format
	f.written = 0
	f.chans = make([][]int32, format.Channels)
	for ch := range f.chans {
		f.chans[ch] = make([]int32, 0, 2*flacBlockSize)
	}

	log.Printf("FLAC capture opened: %s (%s)", f.path, format)
	return nil
}

// Write queues PCM and encodes every complete block
func (f *FLAC) Write(buf []byte) (int, error) {
	if f.enc == nil {
		return 0, ErrNotOpen
	}

	samples, err := f.decoder.Decode(buf)
	if err != nil {
		return 0, err
	}

	channels := f.format.Channels
	frames := len(samples) / channels
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			s := samples[i*channels+ch]
			if f.format.BitDepth == 16 {
				s = int32(audio.SampleToInt16(s))
			}
			f.chans[ch] = append(f.chans[ch], s)
		}
	}

	for len(f.chans[0]) >= flacBlockSize {
		if err := f.writeFrame(flacBlockSize); err != nil {
			return 0, err
		}
	}
	return len(buf), nil
}

// flush encodes the queued tail, padded with silence up to the minimum block size
func (f *FLAC) flush() error {
	n := len(f.chans[0])
	if n == 0 {
		return nil
	}
	for n < flacMinBlockSize {
		for ch := range f.chans {
			f.chans[ch] = append(f.chans[ch], 0)
		}
		n++
	}
	return f.writeFrame(n)
}

// writeFrame encodes the first n queued frames and drops them from the queue
func (f *FLAC) writeFrame(n int) error {
	channels := frame.ChannelsLR
	if f.format.Channels == 1 {
		channels = frame.ChannelsMono
	}

	subframes := make([]*frame.Subframe, len(f.chans))
	for ch, s := range f.chans {
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   s[:n:n],
			NSamples:  n,
		}
	}

	fr := &frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: false,
			BlockSize:         uint16(n),
			SampleRate:        uint32(f.format.SampleRate),
			Channels:          channels,
			BitsPerSample:     uint8(f.format.BitDepth),
			Num:               f.written,
		},
		Subframes: subframes,
	}
	if err := f.enc.WriteFrame(fr); err != nil {
		return fmt.Errorf("flac write failed: %w", err)
	}
	f.written += uint64(n)

	for ch, s := range f.chans {
		rest := copy(s, s[n:])
		f.chans[ch] = s[:rest]
	}
	return nil
}

func (f *FLAC) Pause() error  { return nil }
func (f *FLAC) Resume() error { return nil }

// Close encodes any queued tail and flushes the encoder, which also closes the file
func (f *FLAC) Close() error {
	if f.file == nil {
		return nil
	}

	err := f.flush()
	if cerr := f.enc.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("flac finalize failed: %w", cerr)
	}
	f.decoder.Close()
	f.file = nil
	f.enc = nil
	f.decoder = nil
	f.chans = nil
	return err
}
