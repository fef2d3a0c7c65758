//go:build windows

// ABOUTME: Windows terminal reader for the key poller
// ABOUTME: Console reads block, so Stop does not wait for the reader
package tty

func (p *Poller) startTerminal() error {
	go p.readLoop()
	return nil
}

func setNonblock(int, bool) {}
