// ABOUTME: Entry point for the midiplay command-line player
// ABOUTME: Parses flags, picks a playback backend and runs the playback session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Sendspin/midiplay/internal/config"
	"github.com/Sendspin/midiplay/internal/player"
	"github.com/Sendspin/midiplay/internal/tty"
	"github.com/Sendspin/midiplay/internal/ui"
	"github.com/Sendspin/midiplay/internal/version"
	"github.com/Sendspin/midiplay/pkg/audio"
	"github.com/Sendspin/midiplay/pkg/audio/output"
	"github.com/Sendspin/midiplay/pkg/synth"
	"github.com/google/uuid"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// nameFlag is a string flag that refuses an empty value
type nameFlag struct {
	what  string
	value string
}

func (f *nameFlag) String() string {
	if f == nil {
		return ""
	}
	return f.value
}

func (f *nameFlag) Set(s string) error {
	if s == "" {
		return fmt.Errorf("empty %s name", f.what)
	}
	f.value = s
	return nil
}

type options struct {
	playback   nameFlag
	device     nameFlag
	wavout     nameFlag
	flacout    nameFlag
	tomidi     nameFlag
	configPath nameFlag
	logFile    string

	rate      int
	mastervol int
	playFrom  float64
	playTo    float64

	logVol      bool
	reverb      bool
	enhanced    bool
	roundTempo  bool
	skipSilence bool
	textAsLyric bool
	type0       bool

	testMidi  bool
	testBank  int
	testPatch int

	listOutputs bool
	help        bool
	showVersion bool
	tui         bool
	karaoke     bool
}

func newFlagSet(o *options, stderr io.Writer) *flag.FlagSet {
	o.playback.what = "playback"
	o.device.what = "device"
	o.wavout.what = "wavfile"
	o.flacout.what = "flacfile"
	o.tomidi.what = "midi"
	o.configPath.what = "config"

	fs := flag.NewFlagSet(version.Product, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printSyntax(stderr) }

	fs.Var(&o.playback, "playback", "Set `P` as playback output")
	fs.Var(&o.device, "device", "Use device `D` for audio output instead of default (pulse)")
	fs.Var(&o.wavout, "wavout", "Save output to `W` in 16bit stereo format wav file")
	fs.Var(&o.flacout, "flacout", "Save output to `F` in 16bit stereo format flac file")
	fs.Var(&o.tomidi, "tomidi", "Convert the file to midi and save it to `M`")
	fs.Var(&o.configPath, "config", "Point to the configuration file `P`")
	fs.StringVar(&o.logFile, "log-file", "", "Append diagnostics to this file")

	fs.IntVar(&o.rate, "rate", -1, "Set sample rate to `N` samples per second (Hz)")
	fs.IntVar(&o.mastervol, "mastervol", -1, "Set the master volume `V` (0..127), default is 100")
	fs.Float64Var(&o.playFrom, "playfrom", 0, "Start playback at `S` seconds")
	fs.Float64Var(&o.playTo, "playto", 0, "Stop playback at `S` seconds")

	fs.BoolVar(&o.logVol, "log_vol", false, "Use log volume adjustments")
	fs.BoolVar(&o.reverb, "reverb", false, "Enable final output reverb engine")
	fs.BoolVar(&o.enhanced, "enhanced", false, "Enable enhanced resampling")
	fs.BoolVar(&o.roundTempo, "roundtempo", false, "Round tempo to nearest whole number")
	fs.BoolVar(&o.skipSilence, "skipsilentstart", false, "Skips any silence at the start of playback")
	fs.BoolVar(&o.textAsLyric, "textaslyric", false, "Treat text meta events as lyrics")
	fs.BoolVar(&o.type0, "type0", false, "Save midi output as a single track (type 0)")

	fs.BoolVar(&o.testMidi, "test_midi", false, "Listen to test MIDI")
	fs.IntVar(&o.testBank, "test_bank", 0, "Bank `B` for the test MIDI")
	fs.IntVar(&o.testPatch, "test_patch", 0, "Patch `P` for the test MIDI")

	fs.BoolVar(&o.listOutputs, "list-outputs", false, "List available playback outputs and exit")
	fs.BoolVar(&o.help, "help", false, "Display this help and exit")
	fs.BoolVar(&o.showVersion, "version", false, "Display version info and exit")
	fs.BoolVar(&o.tui, "tui", false, "Use the full-screen status display")
	fs.BoolVar(&o.karaoke, "karaoke", false, "Start with karaoke lyrics shown")
	return fs
}

func printSyntax(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s [options] filename.mid ...\n\n", version.Product)
}

func printOutputs(w io.Writer) {
	fmt.Fprintln(w, "Available playback outputs (option --playback):")
	for _, d := range output.Available() {
		fmt.Fprintf(w, "  %-20s%s\n", d.Name, d.Description)
	}
}

func printHelp(w io.Writer, fs *flag.FlagSet) {
	printSyntax(w)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	printOutputs(w)
}

// run is the whole program; it returns the process exit status
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var o options
	fs := newFlagSet(&o, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printHelp(stdout, fs)
			return 0
		}
		return 1
	}

	fmt.Fprintf(stdout, "%s\n\n", version.Banner())

	switch {
	case o.showVersion:
		fmt.Fprintf(stdout, "Copyright (C) %s\n", version.Manufacturer)
		return 0
	case o.help:
		printHelp(stdout, fs)
		return 0
	case o.listOutputs:
		printOutputs(stdout)
		return 0
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["rate"] && (o.rate < 0 || o.rate > 65535) {
		fmt.Fprintf(stderr, "Error: bad rate %d.\n", o.rate)
		return 1
	}
	if set["mastervol"] && (o.mastervol < 0 || o.mastervol > player.MaxVolume) {
		fmt.Fprintf(stderr, "Error: bad master volume %d.\n", o.mastervol)
		return 1
	}
	if o.wavout.value != "" && o.flacout.value != "" {
		fmt.Fprintln(stderr, "Error: --wavout and --flacout cannot be used together.")
		return 1
	}

	cfgPath := o.configPath.value
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	merge(cfg, &o, set)

	desc, err := selectBackend(cfg, &o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	restoreLog, err := setupLogging(cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer restoreLog()

	files := fs.Args()
	if len(files) == 0 && !o.testMidi {
		fmt.Fprint(stderr, "ERROR: No midi file given\r\n")
		printSyntax(stderr)
		return 1
	}
	if o.testMidi && o.tomidi.value != "" {
		fmt.Fprintln(stderr, "--test_midi and --tomidi cannot be used together.")
		return 1
	}

	engine, err := synth.NewEngine(cfg.SampleRate, cfg.Options())
	if err != nil {
		fmt.Fprintf(stderr, "%v\r\n", err)
		return 1
	}
	engine.SetMasterVolume(cfg.MasterVolume)

	if o.tomidi.value != "" {
		return convert(engine, files[0], o.tomidi.value, stdout, stderr)
	}

	sources, err := buildSources(engine, files, &o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Initializing Sound System (%s)\n", desc.Name)
	if cfg.Device != "" && desc.ID != output.IDPulse {
		log.Printf("Ignoring device %q: the %s backend has no device selection", cfg.Device, desc.Name)
	}
	out := desc.New(output.Options{Path: capturePath(&o), Device: cfg.Device})

	format := audio.Stereo16(engine.Rate())
	scfg := player.Config{
		Output:  out,
		Format:  format,
		Mixer:   engine,
		Volume:  cfg.MasterVolume,
		Karaoke: cfg.Karaoke,
	}
	if o.playFrom > 0 {
		scfg.PlayFrom = format.SecondsToFrames(o.playFrom)
	}
	if o.playTo > 0 {
		scfg.PlayTo = format.SecondsToFrames(o.playTo)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TUI {
		return runTUI(ctx, scfg, sources, stderr)
	}

	for _, line := range player.KeyHelp {
		fmt.Fprintf(stdout, " %s\n", line)
	}
	fmt.Fprintln(stdout)

	keys := tty.NewPoller(stdin)
	if err := keys.Start(); err != nil {
		log.Printf("Keyboard input unavailable: %v", err)
	}
	defer keys.Stop()

	scfg.Keys = keys
	scfg.Display = player.NewLineDisplay(stderr)
	if err := runSession(ctx, scfg, sources); err != nil {
		keys.Stop()
		fmt.Fprintf(stderr, "\r\nError: %v\r\n", err)
		return 1
	}
	fmt.Fprint(stderr, "\r\n")
	return 0
}

func runSession(ctx context.Context, cfg player.Config, sources []player.Source) error {
	session, err := player.NewSession(cfg)
	if err != nil {
		return err
	}
	return session.Run(ctx, sources)
}

// runTUI runs the session behind the full-screen display
func runTUI(ctx context.Context, cfg player.Config, sources []player.Source, stderr io.Writer) int {
	screen := ui.New()
	cfg.Keys = screen
	cfg.Display = screen

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- screen.Run()
	}()

	err := runSession(ctx, cfg, sources)
	screen.Done()
	if tuiErr := <-tuiDone; tuiErr != nil {
		log.Printf("TUI exited: %v", tuiErr)
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// merge applies explicitly given flags on top of the config file
func merge(cfg *config.Config, o *options, set map[string]bool) {
	if set["playback"] {
		cfg.Playback = o.playback.value
	}
	if set["device"] {
		cfg.Device = o.device.value
	}
	if set["rate"] {
		cfg.SampleRate = o.rate
	}
	if set["mastervol"] {
		cfg.MasterVolume = uint8(o.mastervol)
	}
	if set["log-file"] {
		cfg.LogFile = o.logFile
	}
	if set["tui"] {
		cfg.TUI = o.tui
	}
	if set["karaoke"] {
		cfg.Karaoke = o.karaoke
	}

	// Option flags only switch things on, like the config file
	m := &cfg.Mixer
	m.LogVolume = m.LogVolume || o.logVol
	m.Reverb = m.Reverb || o.reverb
	m.Enhanced = m.Enhanced || o.enhanced
	m.RoundTempo = m.RoundTempo || o.roundTempo
	m.SkipSilence = m.SkipSilence || o.skipSilence
	m.TextAsLyric = m.TextAsLyric || o.textAsLyric
	m.SaveAsType0 = m.SaveAsType0 || o.type0
}

// selectBackend resolves the backend; a capture target overrides --playback
func selectBackend(cfg *config.Config, o *options) (output.Descriptor, error) {
	switch {
	case o.wavout.value != "":
		return output.Get(output.IDWave), nil
	case o.flacout.value != "":
		return output.Get(output.IDFLAC), nil
	}

	desc, err := output.Lookup(cfg.Playback)
	if err != nil {
		log.Printf("Backend lookup failed: %v", err)
		return output.Descriptor{}, fmt.Errorf("chosen playback %s is not available.", cfg.Playback)
	}
	if desc.Capture {
		return output.Descriptor{}, fmt.Errorf("playback %s needs --%sout", desc.Name, captureFlag(desc.ID))
	}
	return desc, nil
}

func captureFlag(id output.ID) string {
	if id == output.IDFLAC {
		return "flac"
	}
	return "wav"
}

func capturePath(o *options) string {
	if o.wavout.value != "" {
		return o.wavout.value
	}
	return o.flacout.value
}

// setupLogging points the standard logger at the log file, stderr or nowhere
func setupLogging(cfg *config.Config, stderr io.Writer) (func(), error) {
	prevOut, prevPrefix := log.Writer(), log.Prefix()
	restore := func() {
		log.SetOutput(prevOut)
		log.SetPrefix(prevPrefix)
	}

	sessionID := uuid.New().String()[:8]
	log.SetPrefix(fmt.Sprintf("[%s] ", sessionID))

	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			restore()
			return nil, fmt.Errorf("error opening log file: %w", err)
		}
		log.SetOutput(f)
		return func() {
			restore()
			_ = f.Close()
		}, nil
	case cfg.TUI:
		// The screen owns the terminal
		log.SetOutput(io.Discard)
	default:
		log.SetOutput(stderr)
	}
	return restore, nil
}

func buildSources(engine *synth.Engine, files []string, o *options) ([]player.Source, error) {
	if o.testMidi {
		data, err := synth.TestScale(uint8(o.testBank), uint8(o.testPatch))
		if err != nil {
			return nil, fmt.Errorf("failed to build test midi: %w", err)
		}
		return []player.Source{{
			Name: "test midi",
			Open: func() (player.Decoder, error) {
				return openTrack(engine.OpenBuffer(data))
			},
		}}, nil
	}

	sources := make([]player.Source, 0, len(files))
	for _, path := range files {
		sources = append(sources, player.Source{
			Name: filepath.Base(path),
			Path: path,
			Open: func() (player.Decoder, error) {
				return openTrack(engine.Open(path))
			},
		})
	}
	return sources, nil
}

// openTrack keeps a failed open from becoming a non-nil interface
func openTrack(t *synth.Track, err error) (player.Decoder, error) {
	if err != nil {
		return nil, err
	}
	return t, nil
}

// convert implements --tomidi
func convert(engine *synth.Engine, src, dst string, stdout, stderr io.Writer) int {
	fmt.Fprintf(stdout, "Converting %s\r\n", filepath.Base(src))
	data, err := engine.ConvertToMidi(src)
	if err != nil {
		fmt.Fprintf(stderr, "Conversion failed: %v.\r\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Writing %s: %d bytes.\r\n", dst, len(data))
	if err := player.WriteMidiFile(dst, data); err != nil {
		fmt.Fprintf(stderr, "Error: %v\r\n", err)
		return 1
	}
	return 0
}
