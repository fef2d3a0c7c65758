// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams 16-bit PCM to the system device through a pipe-fed oto player
package output

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/Sendspin/midiplay/pkg/audio"
)

// oto only allows one context per process, so it is shared between sessions
var otoShared struct {
	mu     sync.Mutex
	ctx    *oto.Context
	format audio.Format
}

// Oto output implementation using oto library
type Oto struct {
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{}
}

func otoContext(format audio.Format) (*oto.Context, error) {
	otoShared.mu.Lock()
	defer otoShared.mu.Unlock()

	if otoShared.ctx != nil {
		if otoShared.format != format {
			return nil, fmt.Errorf("oto is already running at %s and cannot switch to %s", otoShared.format, format)
		}
		if err := otoShared.ctx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		log.Printf("Audio output already initialized with same format, reusing context")
		return otoShared.ctx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoShared.ctx = ctx
	otoShared.format = format
	return ctx, nil
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format) error {
	if o.player != nil {
		return fmt.Errorf("oto output is already open")
	}
	if err := format.Validate(); err != nil {
		return err
	}
	// oto only supports 16-bit output
	if format.BitDepth != 16 {
		return fmt.Errorf("oto only supports 16-bit output, got %d-bit", format.BitDepth)
	}

	ctx, err := otoContext(format)
	if err != nil {
		return err
	}

	// Persistent player reading from a pipe for continuous streaming
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()

	log.Printf("Audio output initialized: %s (oto)", format)
	return nil
}

// Write outputs PCM bytes (blocks until the player has taken them)
func (o *Oto) Write(buf []byte) (int, error) {
	if o.pipeWriter == nil {
		return 0, ErrNotOpen
	}

	n, err := o.pipeWriter.Write(buf)
	if err != nil {
		return n, fmt.Errorf("pipe write failed: %w", err)
	}
	return n, nil
}

// Pause stops the player without dropping the pipe
func (o *Oto) Pause() error {
	if o.player != nil {
		o.player.Pause()
	}
	return nil
}

// Resume restarts a paused player
func (o *Oto) Resume() error {
	if o.player != nil {
		o.player.Play()
	}
	return nil
}

// Close releases the player and suspends the shared context
func (o *Oto) Close() error {
	if o.player == nil {
		return nil
	}

	o.pipeWriter.Close()
	err := o.player.Close()
	o.pipeReader.Close()
	o.player = nil
	o.pipeWriter = nil
	o.pipeReader = nil

	otoShared.mu.Lock()
	if otoShared.ctx != nil {
		if serr := otoShared.ctx.Suspend(); serr != nil {
			log.Printf("Warning: oto suspend error: %v", serr)
		}
	}
	otoShared.mu.Unlock()

	return err
}
