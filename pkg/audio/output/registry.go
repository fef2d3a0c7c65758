// ABOUTME: Backend descriptor table
// ABOUTME: Enum-indexed set of named backends with lookup by name
package output

import (
	"fmt"
	"strings"
)

// ID identifies one entry of the backend table
type ID int

const (
	IDNoOut ID = iota
	IDWave
	IDFLAC
	IDOto
	IDMalgo
	IDPulse
	IDPortAudio
	numOutputs
)

// Descriptor describes one backend
type Descriptor struct {
	ID          ID
	Name        string
	Description string
	Enabled     bool
	// Capture marks backends that write a file instead of a device
	Capture bool
	New     func(opts Options) Output
}

var descriptors = [numOutputs]Descriptor{
	IDNoOut: {
		ID:          IDNoOut,
		Name:        "noout",
		Description: "No output",
		Enabled:     true,
		New:         func(Options) Output { return NewNoOut() },
	},
	IDWave: {
		ID:          IDWave,
		Name:        "wave",
		Description: "Save to .wav file",
		Enabled:     true,
		Capture:     true,
		New:         func(o Options) Output { return NewWave(o.Path) },
	},
	IDFLAC: {
		ID:          IDFLAC,
		Name:        "flac",
		Description: "Save to .flac file",
		Enabled:     true,
		Capture:     true,
		New:         func(o Options) Output { return NewFLAC(o.Path) },
	},
	IDOto: {
		ID:          IDOto,
		Name:        "oto",
		Description: "System default device (oto)",
		Enabled:     true,
		New:         func(Options) Output { return NewOto() },
	},
	IDMalgo: {
		ID:          IDMalgo,
		Name:        "malgo",
		Description: "miniaudio device (malgo)",
		Enabled:     true,
		New:         func(Options) Output { return NewMalgo() },
	},
	IDPulse: {
		ID:          IDPulse,
		Name:        "pulse",
		Description: "PulseAudio",
		Enabled:     true,
		New:         func(o Options) Output { return NewPulse(o.Device) },
	},
	IDPortAudio: {
		ID:          IDPortAudio,
		Name:        "portaudio",
		Description: "PortAudio",
		Enabled:     portaudioEnabled,
		New:         func(Options) Output { return NewPortAudio() },
	},
}

// Get returns the descriptor for id
func Get(id ID) Descriptor {
	return descriptors[id]
}

// All returns every descriptor in table order, enabled or not
func All() []Descriptor {
	return append([]Descriptor(nil), descriptors[:]...)
}

// Available returns the enabled descriptors in table order
func Available() []Descriptor {
	var out []Descriptor
	for _, d := range descriptors {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Lookup finds an enabled backend by name (case-insensitive)
func Lookup(name string) (Descriptor, error) {
	for _, d := range descriptors {
		if strings.EqualFold(d.Name, name) {
			if !d.Enabled {
				return Descriptor{}, fmt.Errorf("%w: %s is not enabled in this build", ErrUnknownBackend, d.Name)
			}
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
}

func (id ID) String() string {
	if id < 0 || id >= numOutputs {
		return fmt.Sprintf("ID(%d)", int(id))
	}
	return descriptors[id].Name
}
