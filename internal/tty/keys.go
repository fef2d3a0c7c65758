// ABOUTME: Non-blocking single-key input for the playback loop
// ABOUTME: Reads stdin in raw mode on a goroutine and hands keys out one at a time
package tty

import (
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	ctrlC = 0x03
	ctrlD = 0x04

	// keyBuffer bounds how many unread keys are kept
	keyBuffer = 64
	idleSleep = 5 * time.Millisecond
)

// Poller turns a byte stream into keypresses that can be polled without blocking.
// Ctrl-C and Ctrl-D arrive as 'q' since raw mode swallows the signal.
type Poller struct {
	r    io.Reader
	keys chan byte

	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once

	fd          int
	raw         bool
	nonblockSet bool
	oldState    *term.State
	// waitOnStop is false when the reader may block forever
	waitOnStop bool
}

// NewPoller creates a poller over r. Nothing is read until Start.
func NewPoller(r io.Reader) *Poller {
	return &Poller{
		r:      r,
		keys:   make(chan byte, keyBuffer),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		fd:     -1,
	}
}

// IsTerminal reports whether the poller reads from an interactive terminal
func (p *Poller) IsTerminal() bool {
	f, ok := p.r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start switches a terminal to raw mode and begins reading keys.
// Non-terminal input such as a pipe is read as-is.
func (p *Poller) Start() error {
	if p.IsTerminal() {
		f := p.r.(*os.File)
		p.fd = int(f.Fd())
		old, err := term.MakeRaw(p.fd)
		if err != nil {
			close(p.done)
			return err
		}
		p.oldState = old
		p.raw = true
		return p.startTerminal()
	}

	go p.readLoop()
	return nil
}

// PollKey returns the next pending key, if any
func (p *Poller) PollKey() (byte, bool) {
	select {
	case k := <-p.keys:
		return k, true
	default:
		return 0, false
	}
}

// Stop ends reading and restores the terminal. It is safe to call more than once.
func (p *Poller) Stop() {
	p.stopped.Do(func() {
		close(p.stopCh)
		if p.waitOnStop {
			<-p.done
		}
		p.restore()
	})
}

func (p *Poller) restore() {
	if p.nonblockSet {
		setNonblock(p.fd, false)
		p.nonblockSet = false
	}
	if p.oldState != nil {
		_ = term.Restore(p.fd, p.oldState)
		p.oldState = nil
	}
}

// readLoop reads with plain blocking reads until EOF or Stop
func (p *Poller) readLoop() {
	defer close(p.done)
	buf := make([]byte, 1)
	for {
		n, err := p.r.Read(buf)
		if n > 0 && !p.deliver(buf[0]) {
			return
		}
		if err != nil {
			return
		}
	}
}

// deliver queues one key, dropping it when the queue is full.
// It returns false once the poller is stopped.
func (p *Poller) deliver(b byte) bool {
	select {
	case <-p.stopCh:
		return false
	default:
	}
	select {
	case p.keys <- translate(b):
	default:
	}
	return true
}

func translate(b byte) byte {
	switch b {
	case ctrlC, ctrlD:
		return 'q'
	}
	return b
}
