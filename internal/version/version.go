// ABOUTME: Version and product identification
// ABOUTME: Shared by the startup banner and --version
package version

import "fmt"

const (
	Version      = "0.1.0"
	Product      = "midiplay"
	Manufacturer = "Sendspin"
)

// Banner is the one-line greeting printed at startup
func Banner() string {
	return fmt.Sprintf("%s %s Open Source MIDI Player", Product, Version)
}
