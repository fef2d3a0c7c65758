//go:build !windows

// ABOUTME: Unix terminal reader for the key poller
// ABOUTME: Uses non-blocking stdin so Stop never waits on a pending read
package tty

import (
	"syscall"
	"time"
)

func (p *Poller) startTerminal() error {
	if err := syscall.SetNonblock(p.fd, true); err != nil {
		p.restore()
		close(p.done)
		return err
	}
	p.nonblockSet = true
	p.waitOnStop = true

	go func() {
		defer close(p.done)
		buf := make([]byte, 1)

		for {
			select {
			case <-p.stopCh:
				return
			default:
			}

			n, err := syscall.Read(p.fd, buf)
			if n > 0 && !p.deliver(buf[0]) {
				return
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(idleSleep)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(idleSleep)
			}
		}
	}()
	return nil
}

func setNonblock(fd int, on bool) {
	_ = syscall.SetNonblock(fd, on)
}
