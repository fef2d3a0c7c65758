// ABOUTME: Playback control loop
// ABOUTME: Pulls PCM from a decoder, pushes it to one backend and reacts to keys
package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/audio/output"
	"github.com/Sendspin/midiplay/pkg/synth"
)

const (
	// DefaultChunkSize is the request size per tick, and the size of the silence flush
	DefaultChunkSize = 16384

	// DefaultPauseInterval is how often keys are polled while paused
	DefaultPauseInterval = 5 * time.Millisecond
)

// State is where the control loop is in the per-track lifecycle
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateDraining
	StateClosed
	StateSkipped
	StateAdvance
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	case StateSkipped:
		return "skipped"
	case StateAdvance:
		return "advance"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Decoder is one opened track as the control loop sees it
type Decoder interface {
	Output(buf []byte) (int, error)
	Info() synth.Info
	Lyric() (synth.Lyric, bool)
	SetOption(opt synth.Option, on bool) error
	FastSeek(sample *uint64) error
	SongSeek(dir int) error
	MidiOutput() ([]byte, error)
	Close() error
}

var _ Decoder = (*synth.Track)(nil)

// Mixer applies the session-wide master volume
type Mixer interface {
	SetMasterVolume(v uint8)
}

// KeySource yields keypresses without blocking
type KeySource interface {
	PollKey() (byte, bool)
}

type noKeys struct{}

func (noKeys) PollKey() (byte, bool) { return 0, false }

// NoKeys is a KeySource that never has input
var NoKeys KeySource = noKeys{}

// Source is one entry of the playlist
type Source struct {
	// Name is shown when the track starts
	Name string
	// Path is the file the track came from; it names the .mid capture file
	Path string
	Open func() (Decoder, error)
}

// Config wires a session to its collaborators
type Config struct {
	Output  output.Output
	Format  audio.Format
	Mixer   Mixer
	Keys    KeySource
	Display Display

	Volume   uint8
	Karaoke  bool
	PlayFrom uint64
	PlayTo   uint64

	ChunkSize     int
	PauseInterval time.Duration
	Sleep         func(time.Duration)
}

// Session runs a playlist through one output backend
type Session struct {
	cfg       Config
	transport Transport
	lyrics    *LyricBuffer
	state     State
	spin      int
	buf       []byte
	silence   []byte
}

type trackResult int

const (
	resultNext trackResult = iota
	resultQuit
)

// NewSession validates cfg and prepares a session
func NewSession(cfg Config) (*Session, error) {
	if cfg.Output == nil {
		return nil, errors.New("no output backend")
	}
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Keys == nil {
		cfg.Keys = NoKeys
	}
	if cfg.Display == nil {
		return nil, errors.New("no display")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if fs := cfg.Format.FrameSize(); cfg.ChunkSize%fs != 0 {
		return nil, fmt.Errorf("chunk size %d is not a whole number of %d-byte frames", cfg.ChunkSize, fs)
	}
	if cfg.PauseInterval <= 0 {
		cfg.PauseInterval = DefaultPauseInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.Volume > MaxVolume {
		cfg.Volume = MaxVolume
	}

	s := &Session{
		cfg:     cfg,
		lyrics:  NewLyricBuffer(),
		buf:     make([]byte, cfg.ChunkSize),
		silence: make([]byte, cfg.ChunkSize),
		transport: Transport{
			Volume:   cfg.Volume,
			Karaoke:  cfg.Karaoke,
			PlayFrom: cfg.PlayFrom,
			PlayTo:   cfg.PlayTo,
		},
	}
	if s.transport.NormalizeWindow() {
		log.Printf("Ignoring play-to %d: it is before play-from %d", cfg.PlayTo, cfg.PlayFrom)
	}
	return s, nil
}

// State returns the current lifecycle state
func (s *Session) State() State { return s.state }

// Transport returns a snapshot of the transport state
func (s *Session) Transport() Transport { return s.transport }

// Run plays every source in order. It returns nil on a clean finish or quit,
// and an error when the backend fails to open or write.
func (s *Session) Run(ctx context.Context, sources []Source) error {
	if s.cfg.Mixer != nil {
		s.cfg.Mixer.SetMasterVolume(s.transport.Volume)
	}

	if err := s.cfg.Output.Open(s.cfg.Format); err != nil {
		s.cfg.Output.Close()
		s.state = StateClosed
		return fmt.Errorf("failed to open output: %w", err)
	}

	for _, src := range sources {
		res, err := s.playTrack(ctx, src)
		if err != nil {
			s.closeOutput()
			return err
		}
		if res == resultQuit {
			if !s.transport.Paused {
				if err := s.flush(); err != nil {
					s.closeOutput()
					return err
				}
			}
			break
		}
	}

	s.closeOutput()
	return nil
}

func (s *Session) closeOutput() {
	if err := s.cfg.Output.Close(); err != nil {
		log.Printf("Error closing output: %v", err)
	}
	s.state = StateClosed
}

// flush writes one chunk of silence
func (s *Session) flush() error {
	if _, err := s.cfg.Output.Write(s.silence); err != nil {
		return fmt.Errorf("output write failed: %w", err)
	}
	return nil
}

func (s *Session) playTrack(ctx context.Context, src Source) (trackResult, error) {
	s.state = StateLoading
	dec, err := src.Open()
	if err != nil {
		s.state = StateSkipped
		log.Printf("Skipping %s: %v", src.Name, err)
		s.cfg.Display.TrackSkipped(src.Name, err)
		return resultNext, nil
	}
	defer func() {
		if err := dec.Close(); err != nil {
			log.Printf("Failed closing midi handle: %v", err)
		}
	}()

	info := dec.Info()
	s.transport.Options = info.Options
	s.lyrics.Reset()
	s.cfg.Display.TrackStarted(src.Name, info, s.cfg.Format.SampleRate)

	if s.transport.PlayFrom != 0 {
		from := s.transport.PlayFrom
		if err := dec.FastSeek(&from); err != nil {
			log.Printf("Seek to %d failed: %v", from, err)
		}
	}
	s.refresh(dec)

	s.state = StatePlaying
	if s.transport.Paused {
		s.state = StatePaused
	}

	for {
		key, ok := s.cfg.Keys.PollKey()
		if ctx.Err() != nil {
			key, ok = 'q', true
		}
		if ok {
			switch s.handleKey(dec, src, key) {
			case keyNext:
				return s.advance()
			case keyQuit:
				return resultQuit, nil
			}
		}

		if s.transport.Paused {
			s.refresh(dec)
			s.cfg.Display.Status(s.status())
			s.cfg.Sleep(s.cfg.PauseInterval)
			continue
		}

		size, more := s.transport.ChunkBytes(s.cfg.ChunkSize, s.cfg.Format.FrameSize())
		if !more {
			break
		}

		n, err := dec.Output(s.buf[:size])
		if err != nil {
			log.Printf("Decoder error in %s: %v", src.Name, err)
			break
		}
		if n <= 0 {
			break
		}

		s.refresh(dec)
		l, hasLyric := dec.Lyric()
		s.lyrics.Tick(l, hasLyric, s.transport.Karaoke)
		s.cfg.Display.Status(s.status())
		s.spin++

		if _, err := s.cfg.Output.Write(s.buf[:n]); err != nil {
			s.state = StateClosed
			return resultQuit, fmt.Errorf("output write failed: %w", err)
		}
	}

	s.state = StateDraining
	s.cfg.Display.TrackEnded()
	if err := s.flush(); err != nil {
		return resultQuit, err
	}
	return resultNext, nil
}

// advance leaves the current track early
func (s *Session) advance() (trackResult, error) {
	s.state = StateAdvance
	if s.transport.Paused {
		s.transport.Paused = false
		if err := s.cfg.Output.Resume(); err != nil {
			log.Printf("Resume failed: %v", err)
		}
	}
	s.cfg.Display.TrackEnded()
	if err := s.flush(); err != nil {
		return resultQuit, err
	}
	return resultNext, nil
}

func (s *Session) refresh(dec Decoder) {
	info := dec.Info()
	s.transport.Current = info.CurrentSample
	s.transport.Total = info.ApproxTotalSamples
}

func (s *Session) status() Status {
	return Status{
		Lyrics:  s.lyrics.Visible(),
		Modes:   s.transport.Modes(),
		Volume:  s.transport.Volume,
		Current: s.transport.Current,
		Total:   s.transport.Total,
		Rate:    s.cfg.Format.SampleRate,
		Paused:  s.transport.Paused,
		Spinner: s.spin,
	}
}

// midiCaptureName is the derived .mid name for src, placed in the working directory
func midiCaptureName(src Source) string {
	name := src.Path
	if name == "" {
		name = src.Name
	}
	return MidiFileName(filepath.Base(name))
}
