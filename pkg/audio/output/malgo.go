// ABOUTME: Malgo-based audio output implementation with 24-bit support
// ABOUTME: Uses miniaudio via malgo, feeding the device callback from a ring buffer
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/audio/decode"
)

// writeWait is how long Write sleeps while the ring buffer is full
const writeWait = 2 * time.Millisecond

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	decoder  *decode.PCMDecoder
	format   audio.Format
	closed   chan struct{}

	// Ring buffer for callback-based playback
	ringBuffer *RingBuffer
	scratch    []int32
	mu         sync.Mutex
}

// RingBuffer provides thread-safe circular buffer for audio samples
type RingBuffer struct {
	buffer   []int32
	readPos  int
	writePos int
	size     int
	count    int // Number of samples currently in buffer
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]int32, capacity),
		size:   capacity,
	}
}

// Write adds samples to the ring buffer and returns how many fit
func (rb *RingBuffer) Write(samples []int32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(samples) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// Read retrieves samples from the ring buffer, zero-filling on underrun
func (rb *RingBuffer) Read(samples []int32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(samples) && rb.count > 0; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}

	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}

	return read
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// NewMalgo creates a new Malgo output
func NewMalgo() Output {
	return &Malgo{}
}

// Open initializes the output device with the session format
func (m *Malgo) Open(format audio.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("malgo output is already open")
	}
	if err := format.Validate(); err != nil {
		return err
	}

	var sampleFormat malgo.FormatType
	switch format.BitDepth {
	case 16:
		sampleFormat = malgo.FormatS16
	case 24:
		sampleFormat = malgo.FormatS24
	default:
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	decoder, err := decode.NewPCM(format)
	if err != nil {
		return err
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	// 500ms of buffering
	m.ringBuffer = NewRingBuffer(format.SampleRate * format.Channels / 2)
	m.format = format

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = sampleFormat
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			m.dataCallback(pOutputSample, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		m.releaseContext()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.releaseContext()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.decoder = decoder
	m.closed = make(chan struct{})

	log.Printf("Audio output initialized: %s (malgo/%s)", format, formatName(sampleFormat))
	return nil
}

// Write queues PCM for playback, blocking while the ring buffer is full
func (m *Malgo) Write(buf []byte) (int, error) {
	m.mu.Lock()
	if m.device == nil {
		m.mu.Unlock()
		return 0, ErrNotOpen
	}
	samples, err := m.decoder.Decode(buf)
	rb, closed := m.ringBuffer, m.closed
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}

	written := 0
	for written < len(samples) {
		written += rb.Write(samples[written:])
		if written == len(samples) {
			break
		}
		select {
		case <-closed:
			return written * (m.format.BitDepth / 8), ErrNotOpen
		case <-time.After(writeWait):
		}
	}
	return len(buf), nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * m.format.Channels
	if cap(m.scratch) < total {
		m.scratch = make([]int32, total)
	}
	samples := m.scratch[:total]
	m.ringBuffer.Read(samples)

	switch m.format.BitDepth {
	case 16:
		for i, sample := range samples {
			s16 := audio.SampleToInt16(sample)
			pOutput[i*2] = byte(s16)
			pOutput[i*2+1] = byte(s16 >> 8)
		}
	case 24:
		for i, sample := range samples {
			b := audio.SampleTo24Bit(sample)
			copy(pOutput[i*3:], b[:])
		}
	}
}

// Pause stops the device, keeping buffered audio for Resume
func (m *Malgo) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	return m.device.Stop()
}

// Resume restarts a stopped device
func (m *Malgo) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	return m.device.Start()
}

// Close releases the device and the malgo context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		close(m.closed)
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.decoder.Close()
		m.decoder = nil
	}
	m.releaseContext()
	return nil
}

// releaseContext frees the malgo context (must hold m.mu)
func (m *Malgo) releaseContext() {
	if m.malgoCtx == nil {
		return
	}
	if err := m.malgoCtx.Uninit(); err != nil {
		log.Printf("Warning: malgo context uninit error: %v", err)
	}
	m.malgoCtx.Free()
	m.malgoCtx = nil
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
