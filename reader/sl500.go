package reader

import (
	"context"
	"errors"
	"fmt"

	"gocheckin/device"
)

// Transceiver is the subset of the SL500 a poller needs.
type Transceiver interface {
	Light(c device.Color) error
	Request() error
	Anticoll() (uint32, error)
}

// SL500 implements CardPoller with request + anticollision commands.
type SL500 struct {
	dev Transceiver
}

// NewSL500 creates a poller on an open reader. Closing the poller does not
// close the reader; the process owns it so it can restore the line speed.
func NewSL500(dev Transceiver) *SL500 {
	return &SL500{dev: dev}
}

// Poll implements CardPoller.Poll. The light is reset first so every
// attempt starts dark.
func (s *SL500) Poll(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := s.dev.Light(device.LightOff); err != nil {
		return 0, fmt.Errorf("light off: %w", err)
	}

	if err := s.dev.Request(); err != nil {
		return 0, classify("request", err)
	}

	uid, err := s.dev.Anticoll()
	if err != nil {
		return 0, classify("anticoll", err)
	}
	return uid, nil
}

// classify turns a non-zero reader status into ErrNoCard and wraps the rest.
func classify(op string, err error) error {
	var se *device.StatusError
	if errors.As(err, &se) {
		return ErrNoCard
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Close implements CardPoller.Close.
func (s *SL500) Close() error {
	return nil
}
