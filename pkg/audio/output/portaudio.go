//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform device output using a blocking PortAudio stream
package output

import (
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/audio/decode"
)

const portaudioEnabled = true

// portaudioFrames is the stream buffer size in frames
const portaudioFrames = 1024

// PortAudio output implementation
type PortAudio struct {
	stream   *portaudio.Stream
	decoder  *decode.PCMDecoder
	channels int
	buffer   []int16
	fill     int
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open initializes PortAudio and starts a blocking stream
func (p *PortAudio) Open(format audio.Format) error {
	if p.stream != nil {
		return fmt.Errorf("portaudio output is already open")
	}
	if err := format.Validate(); err != nil {
		return err
	}
	if format.BitDepth != 16 {
		return fmt.Errorf("portaudio output only supports 16-bit, got %d-bit", format.BitDepth)
	}

	decoder, err := decode.NewPCM(format)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.buffer = make([]int16, portaudioFrames*format.Channels)
	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), portaudioFrames, &p.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	p.decoder = decoder
	p.channels = format.Channels
	p.fill = 0

	log.Printf("Audio output initialized: %s (portaudio)", format)
	return nil
}

// Write pushes PCM through the stream one buffer at a time
func (p *PortAudio) Write(buf []byte) (int, error) {
	if p.stream == nil {
		return 0, ErrNotOpen
	}

	samples, err := p.decoder.Decode(buf)
	if err != nil {
		return 0, err
	}

	for _, s := range samples {
		p.buffer[p.fill] = audio.SampleToInt16(s)
		p.fill++
		if p.fill == len(p.buffer) {
			if err := p.stream.Write(); err != nil {
				return 0, fmt.Errorf("portaudio write failed: %w", err)
			}
			p.fill = 0
		}
	}
	return len(buf), nil
}

// flush plays any partially filled buffer, padded with silence
func (p *PortAudio) flush() error {
	if p.fill == 0 {
		return nil
	}
	clear(p.buffer[p.fill:])
	p.fill = 0
	return p.stream.Write()
}

// Pause stops the stream
func (p *PortAudio) Pause() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Stop()
}

// Resume restarts a stopped stream
func (p *PortAudio) Resume() error {
	if p.stream == nil {
		return nil
	}
	return p.stream.Start()
}

// Close releases resources
func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}

	if err := p.flush(); err != nil {
		log.Printf("Warning: portaudio flush error: %v", err)
	}
	if err := p.stream.Stop(); err != nil {
		log.Printf("Warning: portaudio stop error: %v", err)
	}
	err := p.stream.Close()
	p.stream = nil
	p.decoder.Close()
	p.decoder = nil

	if terr := portaudio.Terminate(); terr != nil && err == nil {
		err = terr
	}
	return err
}
