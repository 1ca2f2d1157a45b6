package reader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	stx = 0x02
	etx = 0x03
)

// Wiegand implements CardPoller for Wiegand-to-serial converters that send
// STX, ASCII hex, ETX.
type Wiegand struct {
	port   serial.Port
	window time.Duration
}

// NewWiegand opens a Wiegand converter on the specified serial port.
func NewWiegand(device string, baud int, window time.Duration) (*Wiegand, error) {
	if baud == 0 {
		baud = 9600
	}

	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}

	_ = p.SetReadTimeout(50 * time.Millisecond)

	w := &Wiegand{port: p, window: window}
	w.flush()
	return w, nil
}

// Poll implements CardPoller.Poll.
func (w *Wiegand) Poll(ctx context.Context) (uint32, error) {
	if w.port == nil {
		return 0, errors.New("port not initialized")
	}

	deadline := time.Now().Add(w.window)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		tag, err := w.readFrame()
		if err != nil {
			return 0, err
		}
		if tag != 0 {
			return tag, nil
		}
	}
	return 0, ErrNoCard
}

// readFrame reads a single card frame. (0, nil) means no complete frame.
func (w *Wiegand) readFrame() (uint32, error) {
	first := make([]byte, 1)
	n, err := w.port.Read(first)
	if err != nil {
		return 0, fmt.Errorf("read STX: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	if first[0] != stx {
		w.flush()
		return 0, nil
	}

	var idBuilder strings.Builder
	buf := make([]byte, 1)

	for {
		n, err := w.port.Read(buf)
		if err != nil {
			return 0, fmt.Errorf("read body: %w", err)
		}
		if n == 0 {
			w.flush()
			return 0, nil
		}
		if buf[0] == etx {
			break
		}
		idBuilder.WriteByte(buf[0])
	}

	return parseWiegand(idBuilder.String())
}

// parseWiegand takes the card number from the last six hex digits of a
// zero-padded ten-digit frame.
func parseWiegand(id string) (uint32, error) {
	for len(id) < 10 {
		id = "0" + id
	}
	if _, err := strconv.ParseUint(id, 16, 64); err != nil {
		return 0, fmt.Errorf("invalid hex frame %q", id)
	}
	cardHex := id[len(id)-6:]
	cardInt, err := strconv.ParseUint(cardHex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse card hex %q: %w", cardHex, err)
	}
	return uint32(cardInt), nil
}

// Close implements CardPoller.Close.
func (w *Wiegand) Close() error {
	if w.port == nil {
		return nil
	}
	return w.port.Close()
}

func (w *Wiegand) flush() {
	if w.port == nil {
		return
	}
	_ = w.port.SetReadTimeout(10 * time.Millisecond)
	defer func() {
		_ = w.port.SetReadTimeout(50 * time.Millisecond)
	}()

	tmp := make([]byte, 64)
	for {
		n, err := w.port.Read(tmp)
		if err != nil || n == 0 {
			return
		}
	}
}
