// ABOUTME: Player configuration file
// ABOUTME: YAML defaults for backend, rate, volume and mixer options; CLI flags override them
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/synth"
	"gopkg.in/yaml.v3"
)

// Config represents the player configuration
type Config struct {
	// Playback is the backend name from the descriptor table
	Playback string `yaml:"playback"`

	// Device selects a sink for backends that support it
	Device string `yaml:"device,omitempty"`

	SampleRate   int   `yaml:"sample_rate"`
	MasterVolume uint8 `yaml:"master_volume"`

	Mixer MixerConfig `yaml:"mixer"`

	Karaoke bool   `yaml:"karaoke"`
	TUI     bool   `yaml:"tui"`
	LogFile string `yaml:"log_file,omitempty"`
}

// MixerConfig holds the mixer flags applied when a file is opened
type MixerConfig struct {
	LogVolume   bool `yaml:"log_volume"`
	Reverb      bool `yaml:"reverb"`
	Enhanced    bool `yaml:"enhanced_resampling"`
	RoundTempo  bool `yaml:"round_tempo"`
	SkipSilence bool `yaml:"skip_silent_start"`
	TextAsLyric bool `yaml:"text_as_lyric"`
	SaveAsType0 bool `yaml:"save_as_type0"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Playback:     "oto",
		SampleRate:   audio.DefaultSampleRate,
		MasterVolume: 100,
	}
}

// LoadConfig loads configuration from file.
// Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that flags would also reject
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 65535 {
		return fmt.Errorf("sample_rate %d out of range 0..65535", c.SampleRate)
	}
	if c.MasterVolume > 127 {
		return fmt.Errorf("master_volume %d out of range 0..127", c.MasterVolume)
	}
	return nil
}

// Options converts the mixer section to engine flags
func (c *Config) Options() synth.Option {
	var o synth.Option
	o = o.With(synth.LogVolume, c.Mixer.LogVolume)
	o = o.With(synth.Reverb, c.Mixer.Reverb)
	o = o.With(synth.EnhancedResampling, c.Mixer.Enhanced)
	o = o.With(synth.RoundTempo, c.Mixer.RoundTempo)
	o = o.With(synth.StripSilence, c.Mixer.SkipSilence)
	o = o.With(synth.TextAsLyric, c.Mixer.TextAsLyric)
	o = o.With(synth.SaveAsType0, c.Mixer.SaveAsType0)
	return o
}

// DefaultPath returns the first existing config location, or the first candidate
func DefaultPath() string {
	locations := []string{"./midiplay.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "midiplay", "config.yaml"))
	}
	locations = append(locations, "/etc/midiplay/config.yaml")

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	// Default to first location if none exist
	return locations[0]
}
