package device

import (
	"fmt"
	"io"
	"time"

	bugst "go.bug.st/serial"

	"github.com/tarm/serial"
)

// Port is the byte stream to the reader. SetBaud changes the local line
// speed only; telling the reader to switch is InitCom's job.
type Port interface {
	io.ReadWriter
	SetBaud(baud int) error
	Close() error
}

// OpenPort opens a serial port with the named driver ("tarm" or "bugst").
func OpenPort(driver, name string, baud int, timeout time.Duration) (Port, error) {
	switch driver {
	case "", "tarm":
		return openTarm(name, baud, timeout)
	case "bugst":
		return openBugst(name, baud, timeout)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", driver)
	}
}

// tarmPort wraps github.com/tarm/serial, which cannot change speed on an
// open handle, so SetBaud reopens.
type tarmPort struct {
	*serial.Port
	name    string
	timeout time.Duration
}

func openTarm(name string, baud int, timeout time.Duration) (*tarmPort, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	return &tarmPort{Port: p, name: name, timeout: timeout}, nil
}

func (t *tarmPort) SetBaud(baud int) error {
	if err := t.Port.Close(); err != nil {
		return fmt.Errorf("close serial %s: %w", t.name, err)
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        t.name,
		Baud:        baud,
		ReadTimeout: t.timeout,
	})
	if err != nil {
		return fmt.Errorf("reopen serial %s at %d: %w", t.name, baud, err)
	}
	t.Port = p
	return nil
}

type bugstPort struct {
	bugst.Port
	name string
}

func openBugst(name string, baud int, timeout time.Duration) (*bugstPort, error) {
	p, err := bugst.Open(name, mode(baud))
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", name, err)
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return &bugstPort{Port: p, name: name}, nil
}

func (b *bugstPort) SetBaud(baud int) error {
	if err := b.Port.SetMode(mode(baud)); err != nil {
		return fmt.Errorf("set mode %s at %d: %w", b.name, baud, err)
	}
	return nil
}

func mode(baud int) *bugst.Mode {
	return &bugst.Mode{
		BaudRate: baud,
		Parity:   bugst.NoParity,
		DataBits: 8,
		StopBits: bugst.OneStopBit,
	}
}
