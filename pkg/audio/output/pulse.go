// ABOUTME: PulseAudio output backend
// ABOUTME: Native-protocol playback stream fed from a ring buffer, corked on pause
package output

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/audio/decode"
)

// pulseLatency is the requested server-side buffering, in seconds
const pulseLatency = 0.1

// Pulse plays through a PulseAudio server
type Pulse struct {
	sink    string
	client  *pulse.Client
	stream  *pulse.PlaybackStream
	decoder *decode.PCMDecoder
	ring    *RingBuffer
	scratch []int32
	paused  bool
	closing atomic.Bool
	done    chan struct{}
	mu      sync.Mutex
}

// NewPulse creates a PulseAudio output on the named sink ("" for the default)
func NewPulse(sink string) Output {
	return &Pulse{sink: sink}
}

// Open connects to the server and starts a playback stream
func (p *Pulse) Open(format audio.Format) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("pulse output is already open")
	}
	if err := format.Validate(); err != nil {
		return err
	}
	if format.BitDepth != 16 {
		return fmt.Errorf("pulse output only supports 16-bit, got %d-bit", format.BitDepth)
	}

	decoder, err := decode.NewPCM(format)
	if err != nil {
		return err
	}

	client, err := pulse.NewClient(pulse.ClientApplicationName("midiplay"))
	if err != nil {
		return fmt.Errorf("failed to connect to pulseaudio: %w", err)
	}

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(format.SampleRate),
		pulse.PlaybackLatency(pulseLatency),
	}
	if format.Channels == 1 {
		opts = append(opts, pulse.PlaybackMono)
	} else {
		opts = append(opts, pulse.PlaybackStereo)
	}
	if p.sink != "" {
		sink, err := client.SinkByID(p.sink)
		if err != nil {
			client.Close()
			return fmt.Errorf("unknown pulseaudio sink %q: %w", p.sink, err)
		}
		opts = append(opts, pulse.PlaybackSink(sink))
	}

	p.ring = NewRingBuffer(format.SampleRate * format.Channels / 2)
	p.closing.Store(false)

	stream, err := client.NewPlayback(pulse.Int16Reader(p.fill), opts...)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to create playback stream: %w", err)
	}
	stream.Start()

	p.client = client
	p.stream = stream
	p.decoder = decoder
	p.paused = false
	p.done = make(chan struct{})

	log.Printf("Audio output initialized: %s (pulse sink=%q)", format, p.sink)
	return nil
}

// fill is the stream callback; it never blocks on the writer
func (p *Pulse) fill(out []int16) (int, error) {
	if cap(p.scratch) < len(out) {
		p.scratch = make([]int32, len(out))
	}
	samples := p.scratch[:len(out)]
	n := p.ring.Read(samples)

	if n == 0 && p.closing.Load() {
		return 0, pulse.EndOfData
	}
	for i, s := range samples {
		out[i] = audio.SampleToInt16(s)
	}
	return len(out), nil
}

// Write queues PCM, blocking while the ring buffer is full
func (p *Pulse) Write(buf []byte) (int, error) {
	p.mu.Lock()
	if p.stream == nil {
		p.mu.Unlock()
		return 0, ErrNotOpen
	}
	if err := p.stream.Error(); err != nil {
		p.mu.Unlock()
		return 0, fmt.Errorf("pulse stream failed: %w", err)
	}
	samples, err := p.decoder.Decode(buf)
	ring, done := p.ring, p.done
	p.mu.Unlock()
	if err != nil {
		return 0, err
	}

	written := 0
	for {
		written += ring.Write(samples[written:])
		if written == len(samples) {
			return len(buf), nil
		}
		select {
		case <-done:
			return written * 2, ErrNotOpen
		case <-time.After(writeWait):
		}
	}
}

// Pause corks the stream
func (p *Pulse) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || p.paused {
		return nil
	}
	p.stream.Pause()
	p.paused = true
	return nil
}

// Resume uncorks the stream
func (p *Pulse) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil || !p.paused {
		return nil
	}
	p.stream.Resume()
	p.paused = false
	return nil
}

// Close drains queued audio unless paused, then disconnects
func (p *Pulse) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	close(p.done)
	p.closing.Store(true)
	if !p.paused {
		p.stream.Drain()
	}
	err := p.stream.Error()
	p.stream.Close()
	p.client.Close()
	p.decoder.Close()

	p.stream = nil
	p.client = nil
	p.decoder = nil
	return err
}
