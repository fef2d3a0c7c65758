// ABOUTME: Keypress dispatch for the control loop
// ABOUTME: Maps single keys to transport, decoder and backend actions
package player

import (
	"errors"
	"fmt"
	"log"

	"github.com/Sendspin/midiplay/pkg/synth"
)

type keyAction int

const (
	keyContinue keyAction = iota
	keyNext
	keyQuit
)

// keyOptions are the mixer flags toggled by single keys
var keyOptions = map[byte]synth.Option{
	'l': synth.LogVolume,
	'r': synth.Reverb,
	'e': synth.EnhancedResampling,
	'a': synth.TextAsLyric,
}

// sectionKeys map to SongSeek directions
var sectionKeys = map[byte]int{
	'<': -1,
	'>': 1,
	'/': 0,
}

func (s *Session) handleKey(dec Decoder, src Source, key byte) keyAction {
	if opt, ok := keyOptions[key]; ok {
		on := !s.transport.Options.Has(opt)
		if err := dec.SetOption(opt, on); err != nil {
			log.Printf("Failed to set %s: %v", opt, err)
			return keyContinue
		}
		s.transport.Options = s.transport.Options.With(opt, on)
		return keyContinue
	}
	if dir, ok := sectionKeys[key]; ok {
		if err := dec.SongSeek(dir); err != nil && !errors.Is(err, synth.ErrNoSection) {
			log.Printf("Section seek failed: %v", err)
		}
		s.refresh(dec)
		return keyContinue
	}

	switch key {
	case '+':
		if s.transport.VolumeUp() && s.cfg.Mixer != nil {
			s.cfg.Mixer.SetMasterVolume(s.transport.Volume)
		}
	case '-':
		if s.transport.VolumeDown() && s.cfg.Mixer != nil {
			s.cfg.Mixer.SetMasterVolume(s.transport.Volume)
		}
	case 'k':
		s.transport.Karaoke = !s.transport.Karaoke
	case 'p':
		s.togglePause()
	case ',':
		s.seek(dec, s.transport.SeekBackTarget(s.cfg.Format.SampleRate))
	case '.':
		s.seek(dec, s.transport.SeekForwardTarget(s.cfg.Format.SampleRate))
	case 'm':
		s.saveMidi(dec, src)
	case 'n':
		return keyNext
	case 'q':
		return keyQuit
	}
	return keyContinue
}

func (s *Session) togglePause() {
	if s.transport.Paused {
		s.transport.Paused = false
		s.state = StatePlaying
		if err := s.cfg.Output.Resume(); err != nil {
			log.Printf("Resume failed: %v", err)
		}
		return
	}
	s.transport.Paused = true
	s.state = StatePaused
	if err := s.cfg.Output.Pause(); err != nil {
		log.Printf("Pause failed: %v", err)
	}
}

func (s *Session) seek(dec Decoder, target uint64) {
	if err := dec.FastSeek(&target); err != nil {
		log.Printf("Seek to %d failed: %v", target, err)
	}
	s.refresh(dec)
}

// saveMidi writes the events played so far; failures are reported, not fatal
func (s *Session) saveMidi(dec Decoder, src Source) {
	data, err := dec.MidiOutput()
	if err != nil {
		s.cfg.Display.Message(fmt.Sprintf("FAILED to convert events to midi: %v", err))
		return
	}

	name := midiCaptureName(src)
	s.cfg.Display.Message(fmt.Sprintf("Writing %s: %d bytes.", name, len(data)))
	if err := WriteMidiFile(name, data); err != nil {
		s.cfg.Display.Message(fmt.Sprintf("Error: %v", err))
	}
}
