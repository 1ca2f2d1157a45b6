package indicator

import (
	"fmt"
	"os"
)

// Neopixel command strings for the external neopixel tool.
const (
	neoIdle       = "@3 !150000 400000"
	neoGreen      = "@1 !50000 8000"
	neoRed        = "@2 !10000 ff"
	neoTerminated = "@0 010101"
)

// Neopixel implements Sink using an external neopixel tool via named pipe.
// It has no buzzer.
type Neopixel struct {
	pipe *os.File
}

// NewNeopixel opens the tool's command pipe.
func NewNeopixel(pipePath string) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return &Neopixel{pipe: f}, nil
}

// Beep implements Sink.Beep.
func (n *Neopixel) Beep(s Speed) error { return nil }

// Light implements Sink.Light.
func (n *Neopixel) Light(c Color) error {
	switch c {
	case Green:
		return n.write(neoGreen)
	case Red:
		return n.write(neoRed)
	default:
		return n.write(neoIdle)
	}
}

// Release implements Sink.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	n.write(neoTerminated)
	return n.pipe.Close()
}

func (n *Neopixel) write(s string) error {
	if n.pipe == nil {
		return nil
	}
	if _, err := n.pipe.Write([]byte(s)); err != nil {
		return fmt.Errorf("write neopixel: %w", err)
	}
	return nil
}
